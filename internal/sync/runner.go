// Package sync drives a run: it takes the extracted courses and imports them
// one after another, deciding per error whether the run can go on.
package sync

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"moodle-sync/internal/domain"
	"moodle-sync/internal/importer"
	"moodle-sync/internal/providers"
	"moodle-sync/internal/store"
)

var (
	// ErrNoCourses means the source returned nothing to import.
	ErrNoCourses = errors.New("no courses to import")
	// ErrConnectivity aborts a run once the database stops answering.
	ErrConnectivity = errors.New("database unreachable")
)

type CourseImporter interface {
	ImportCourse(ctx context.Context, course domain.Course) (importer.Result, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Runner struct {
	Importer CourseImporter
	DB       Pinger
	Log      logrus.FieldLogger
	// DryRun reports what would be imported without touching the database.
	DryRun      bool
	PingTimeout time.Duration
	Now         func() time.Time
}

// SyncFrom lists the courses of p and runs them.
func (r *Runner) SyncFrom(ctx context.Context, p providers.CourseProvider) (Summary, error) {
	courses, err := p.ListCourses(ctx)
	if err != nil {
		return Summary{}, err
	}
	if len(courses) == 0 {
		return Summary{}, fmt.Errorf("%s: %w", p.Name(), ErrNoCourses)
	}
	return r.Run(ctx, courses)
}

// Run imports courses sequentially. Integrity and other errors fail only their
// course. A connectivity error is followed by a ping and stops the run with
// ErrConnectivity when the ping fails too. Cancellation of ctx stops the run.
func (r *Runner) Run(ctx context.Context, courses []domain.Course) (Summary, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	runID := uuid.NewString()
	log := r.logger().WithField("run_id", runID)

	sum := Summary{RunID: runID, Started: now(), Outcomes: make([]Outcome, 0, len(courses))}
	if len(courses) == 0 {
		return r.finish(log, &sum, now, ErrNoCourses)
	}

	log.WithFields(logrus.Fields{"courses": len(courses), "dry_run": r.DryRun}).Info("run started")
	for _, c := range courses {
		if err := ctx.Err(); err != nil {
			return r.finish(log, &sum, now, err)
		}

		out := r.importOne(ctx, c, now)
		sum.Outcomes = append(sum.Outcomes, out)
		if out.Err == nil {
			continue
		}

		if errors.Is(out.Err, context.Canceled) || ctx.Err() != nil {
			return r.finish(log, &sum, now, cmp.Or(ctx.Err(), out.Err))
		}
		if out.Class == store.ClassConnectivity {
			if err := r.ping(ctx); err != nil {
				return r.finish(log, &sum, now, fmt.Errorf("%w: %w", ErrConnectivity, err))
			}
			log.WithField("course_id", c.ID).Warn("connectivity error but database answers, continuing")
		}
	}
	return r.finish(log, &sum, now, nil)
}

func (r *Runner) importOne(ctx context.Context, c domain.Course, now func() time.Time) Outcome {
	out := Outcome{CourseID: c.ID, ShortName: c.ShortName, Name: c.FullName}
	if r.DryRun {
		out.Status = StatusPlanned
		out.UsersNew = len(c.Users)
		out.Modules = len(c.Program)
		out.Lessons = c.LessonCount()
		return out
	}

	start := now()
	res, err := r.Importer.ImportCourse(ctx, c)
	out.Duration = now().Sub(start)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		out.Class = store.Classify(err)
		return out
	}

	out.Status = StatusImported
	out.TargetID = res.CourseID
	out.CreatorID = res.CreatorID
	out.UsersNew = len(res.NewUserIDs)
	out.UsersReused = len(res.ReusedUserIDs)
	out.Modules = len(res.ModuleIDs)
	out.Lessons = res.Lessons
	return out
}

func (r *Runner) ping(ctx context.Context) error {
	if r.DB == nil {
		return errors.New("no database to ping")
	}
	timeout := r.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.DB.Ping(ctx)
}

func (r *Runner) finish(log logrus.FieldLogger, sum *Summary, now func() time.Time, err error) (Summary, error) {
	sum.Finished = now()
	fields := logrus.Fields{
		"imported": sum.Count(StatusImported),
		"failed":   sum.Count(StatusFailed),
		"planned":  sum.Count(StatusPlanned),
		"elapsed":  sum.Finished.Sub(sum.Started).Round(time.Millisecond).String(),
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("run aborted")
		return *sum, err
	}
	log.WithFields(fields).Info("run finished")
	return *sum, nil
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}
