// Package moodle reads courses, their contents and participants from the
// moodle web service API.
package moodle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moodle-sync/internal/httpx"
)

const restPath = "/webservice/rest/server.php"

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Retry   httpx.RetryConfig
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: time.Minute},
		Retry:   httpx.DefaultRetryConfig(),
	}
}

// CourseURL is the page of a course in the moodle UI.
func (c *Client) CourseURL(id int64) string {
	return c.BaseURL + "/course/view.php?id=" + strconv.FormatInt(id, 10)
}

func (c *Client) Courses(ctx context.Context) ([]Course, error) {
	var out []Course
	if err := c.call(ctx, "core_course_get_courses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Contents(ctx context.Context, courseID int64) ([]Section, error) {
	var out []Section
	if err := c.call(ctx, "core_course_get_contents", courseParams(courseID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) EnrolledUsers(ctx context.Context, courseID int64) ([]EnrolledUser, error) {
	var out []EnrolledUser
	if err := c.call(ctx, "core_enrol_get_enrolled_users", courseParams(courseID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func courseParams(id int64) url.Values {
	return url.Values{"courseid": {strconv.FormatInt(id, 10)}}
}

// call posts one web service function. The form is built from scratch for every
// request so parameters of one call never leak into the next. The token travels
// in the body to keep it out of URLs and error messages.
func (c *Client) call(ctx context.Context, function string, params url.Values, out any) error {
	form := url.Values{
		"wstoken":            {c.Token},
		"moodlewsrestformat": {"json"},
		"wsfunction":         {function},
	}
	for k, v := range params {
		form[k] = append([]string(nil), v...)
	}
	payload := form.Encode()

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+restPath, bytes.NewBufferString(payload))
		if err != nil {
			return nil, fmt.Errorf("moodle: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	var body json.RawMessage
	if err := httpx.DoJSON(ctx, c.HTTP, build, &body, c.Retry); err != nil {
		return fmt.Errorf("moodle %s: %w", function, err)
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		var apiErr APIError
		if json.Unmarshal(trimmed, &apiErr) == nil && apiErr.Exception != "" {
			apiErr.Function = function
			return &apiErr
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("moodle %s: decode: %w body=%s", function, err, httpx.Snippet(body, 300))
	}
	return nil
}
