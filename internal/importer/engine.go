// Package importer materializes one moodle course in the target database:
// users, roles, the course row, its program and the enrolments, all inside a
// single transaction.
package importer

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"moodle-sync/internal/domain"
	"moodle-sync/internal/idrange"
	"moodle-sync/internal/mappers"
	"moodle-sync/internal/reconcile"
	"moodle-sync/internal/store"
)

// DefaultSource tags every row this importer creates.
const DefaultSource = "moodle"

// userStatusActive is the platform's status value for an active account.
const userStatusActive = 10

type Options struct {
	// Source is written to user.src, course.src, auth.source and
	// subdomain_course.subdomain. Existing users are only matched within it.
	Source string
	// ProgressFromStart enrolls users at lesson 0 instead of marking every lesson
	// as reached.
	ProgressFromStart bool
	BcryptCost        int
	Location          *time.Location
	Now               func() time.Time
}

// Result describes a committed import.
type Result struct {
	CourseID  int64 // target course id
	CreatorID int64
	// UserIDs is the combined list: reused ids in candidate order, then new ids.
	UserIDs       []int64
	NewUserIDs    []int64
	ReusedUserIDs []int64
	Duplicates    int
	ModuleIDs     []int64
	Lessons       int
	State         State
}

// Engine imports courses one at a time. It is safe for concurrent use; calls
// are serialized.
type Engine struct {
	db   *store.DB
	opts Options
	log  logrus.FieldLogger
	mu   sync.Mutex
}

func New(db *store.DB, opts Options, log logrus.FieldLogger) *Engine {
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{db: db, opts: opts, log: log}
}

// ImportCourse writes course and its participants in one transaction. On error
// nothing of the course is left in the database and the returned error is a
// *StageError.
func (e *Engine) ImportCourse(ctx context.Context, course domain.Course) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := e.log.WithFields(logrus.Fields{"course_id": course.ID, "course": course.FullName})
	imp := &courseImport{
		engine: e,
		course: course,
		now:    e.opts.Now().In(e.opts.Location),
		stage:  StageBegin,
		log:    log,
	}

	err := e.db.WithImportTx(ctx, func(tx *store.Tx) error {
		imp.tx = tx
		return imp.run(ctx)
	})
	if err != nil {
		stage := imp.stage
		if errors.Is(err, store.ErrCommit) {
			stage = StageCommit
		}
		imp.res.State = StateRolledBack
		log.WithFields(logrus.Fields{"stage": stage, "class": store.Classify(err)}).WithError(err).Warn("course import rolled back")
		return imp.res, &StageError{Stage: stage, CourseID: course.ID, Err: err}
	}

	imp.res.State = StateCommitted
	log.WithFields(logrus.Fields{
		"target_id":  imp.res.CourseID,
		"creator_id": imp.res.CreatorID,
		"users_new":  len(imp.res.NewUserIDs),
		"users_old":  len(imp.res.ReusedUserIDs),
		"modules":    len(imp.res.ModuleIDs),
		"lessons":    imp.res.Lessons,
	}).Info("course imported")
	return imp.res, nil
}

// courseImport carries the state of one ImportCourse call.
type courseImport struct {
	engine *Engine
	tx     *store.Tx
	course domain.Course
	now    time.Time
	stage  Stage
	res    Result
	log    logrus.FieldLogger
	// program holds the inserted modules with their ids, in course order.
	program []idrange.Assigned[domain.Module]
}

func (c *courseImport) run(ctx context.Context) error {
	steps := []struct {
		stage Stage
		fn    func(context.Context) error
		done  State
	}{
		{StageUsers, c.users, StateUsersReconciled},
		{StageTeacher, c.teacher, StateTeacherResolved},
		{StageCourse, c.courseRow, StateCourseInserted},
		{StageSubdomain, c.subdomain, StateCourseInserted},
		{StageModules, c.modules, StateCourseInserted},
		{StageLessons, c.lessons, StateProgramInserted},
		{StageEnrolments, c.enrolments, StateEnrolmentsInserted},
	}
	for _, s := range steps {
		c.stage = s.stage
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.fn(ctx); err != nil {
			return err
		}
		c.res.State = s.done
	}
	c.stage = StageCommit
	return nil
}

func (c *courseImport) src() string { return c.engine.opts.Source }

func (c *courseImport) users(ctx context.Context) error {
	existing, err := c.existingUsers(ctx, reconcile.Emails(c.course.Users))
	if err != nil {
		return err
	}

	part := reconcile.Partition(c.course.Users, existing)
	for _, d := range part.Duplicates {
		c.log.WithField("email", d.Email).Warn("duplicate participant email, skipped")
	}

	newIDs, err := c.insertUsers(ctx, part.New)
	if err != nil {
		return err
	}

	c.res.ReusedUserIDs = part.ExistingIDs
	c.res.NewUserIDs = newIDs
	c.res.Duplicates = len(part.Duplicates)
	c.res.UserIDs = append(slices.Clone(part.ExistingIDs), newIDs...)
	return nil
}

// existingUsers returns users of this source whose email is in emails, ordered
// by id.
func (c *courseImport) existingUsers(ctx context.Context, emails []string) ([]domain.ExistsUser, error) {
	var out []domain.ExistsUser
	for _, ch := range store.Chunks(len(emails), c.tx.BatchSize()) {
		query, args, err := c.tx.In(
			"SELECT id, email FROM "+c.tx.Q("user")+" WHERE src = ? AND email IN (?) ORDER BY id",
			c.src(), emails[ch.Start:ch.End])
		if err != nil {
			return nil, err
		}
		var rows []domain.ExistsUser
		if err := c.tx.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var userColumns = []string{
	"username", "surname", "name", "auth_key", "password_hash", "email",
	"status", "created_at", "updated_at", "description", "src",
}

func (c *courseImport) insertUsers(ctx context.Context, users []domain.User) ([]int64, error) {
	if len(users) == 0 {
		return []int64{}, nil
	}

	rows := make([][]any, 0, len(users))
	for _, u := range users {
		key, err := newAuthKey()
		if err != nil {
			return nil, err
		}
		hash, err := newPasswordHash(c.engine.opts.BcryptCost)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{
			u.UserName, u.LastName, u.FirstName, key, hash, u.Email,
			userStatusActive, c.now, c.now, u.Description, c.src(),
		})
	}

	ids, err := c.tx.InsertReturningIDs(ctx, "user", userColumns, rows)
	if err != nil {
		return nil, err
	}
	inserted, err := idrange.Zip(users, ids)
	if err != nil {
		return nil, err
	}

	roles := make([][]any, 0, len(users))
	auths := make([][]any, 0, len(users))
	for _, u := range inserted {
		roles = append(roles, []any{u.Row.Role(), u.ID, c.now})
		auths = append(auths, []any{u.ID, c.src(), strconv.FormatInt(u.Row.ID, 10)})
	}
	if err := c.tx.InsertRows(ctx, "auth_assignment", []string{"item_name", "user_id", "created_at"}, roles); err != nil {
		return nil, err
	}
	if err := c.tx.InsertRows(ctx, "auth", []string{"user_id", "source", "source_id"}, auths); err != nil {
		return nil, err
	}
	return ids, nil
}

// teacher picks the creator: the first id of the combined user list that holds
// the teacher role.
func (c *courseImport) teacher(ctx context.Context) error {
	ids := c.res.UserIDs
	teachers := make(map[int64]bool)
	for _, ch := range store.Chunks(len(ids), c.tx.BatchSize()) {
		query, args, err := c.tx.In(
			"SELECT user_id FROM auth_assignment WHERE item_name = ? AND user_id IN (?)",
			domain.RoleTeacher, ids[ch.Start:ch.End])
		if err != nil {
			return err
		}
		var found []int64
		if err := c.tx.SelectContext(ctx, &found, query, args...); err != nil {
			return err
		}
		for _, id := range found {
			teachers[id] = true
		}
	}

	for _, id := range ids {
		if teachers[id] {
			c.res.CreatorID = id
			return nil
		}
	}
	return ErrNoTeacher
}

func (c *courseImport) courseRow(ctx context.Context) error {
	row := mappers.ToCourseRow(c.course, c.src(), c.res.CreatorID, c.engine.opts.Location)
	id, err := c.tx.InsertOne(ctx, "course", mappers.CourseColumns, row.Values()...)
	if err != nil {
		return err
	}
	c.res.CourseID = id
	return nil
}

func (c *courseImport) subdomain(ctx context.Context) error {
	return c.tx.InsertRows(ctx, "subdomain_course", []string{"course_id", "subdomain"},
		[][]any{{c.res.CourseID, c.src()}})
}

func (c *courseImport) modules(ctx context.Context) error {
	c.res.ModuleIDs = []int64{}
	if !c.course.HasModules() {
		return nil
	}

	rows := make([][]any, 0, len(c.course.Program))
	for _, m := range c.course.Program {
		rows = append(rows, []any{m.Title, c.res.CourseID})
	}
	ids, err := c.tx.InsertReturningIDs(ctx, "course_module", []string{"name", "course_id"}, rows)
	if err != nil {
		return err
	}
	if c.program, err = idrange.Zip(c.course.Program, ids); err != nil {
		return err
	}
	c.res.ModuleIDs = ids
	return nil
}

func (c *courseImport) lessons(ctx context.Context) error {
	var rows [][]any
	for _, m := range c.program {
		for j, l := range m.Row.Lessons {
			rows = append(rows, []any{m.ID, l.Title, l.Description, j + 1})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := c.tx.InsertRows(ctx, "course_lesson", []string{"module_id", "name", "description", "order"}, rows); err != nil {
		return err
	}
	c.res.Lessons = len(rows)
	return nil
}

func (c *courseImport) enrolments(ctx context.Context) error {
	current := c.res.Lessons
	if c.engine.opts.ProgressFromStart {
		current = 0
	}

	rows := make([][]any, 0, len(c.res.UserIDs))
	for _, id := range c.res.UserIDs {
		rows = append(rows, []any{c.res.CourseID, id, c.now, current})
	}
	return c.tx.InsertRows(ctx, "user_enrolments", []string{"courseid", "userid", "created_at", "current_lesson"}, rows)
}
