package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"musicschool_go/models"
	"musicschool_go/services/finance"
	"musicschool_go/services/weekgrid"

	"golang.org/x/sync/errgroup"
)

const (
	pathTeachers     = "/teachers"
	pathStudents     = "/students"
	pathClassrooms   = "/classrooms"
	pathLessonTypes  = "/lesson-types"
	pathSchedules    = "/lesson-schedules"
	pathAttendances  = "/lesson_attendances"
	pathPayments     = "/lesson-payments"
	pathTransactions = "/financial-transactions"
	pathSms          = "/sms"
)

// User is the account view returned by the auth endpoints.
type User struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	TeacherID *uint  `json:"teacher_id"`
}

type LoginResult struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// Login authenticates and keeps the returned token for later requests.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var out LoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) ListTeachers(ctx context.Context, query url.Values) ([]models.Teacher, error) {
	return list[models.Teacher](ctx, c, pathTeachers, query)
}

func (c *Client) GetTeacher(ctx context.Context, id uint) (*models.Teacher, error) {
	return get[models.Teacher](ctx, c, pathTeachers, id)
}

func (c *Client) CreateTeacher(ctx context.Context, t models.Teacher) (*models.Teacher, error) {
	return create[models.Teacher](ctx, c, pathTeachers, t)
}

func (c *Client) UpdateTeacher(ctx context.Context, id uint, t models.Teacher) (*models.Teacher, error) {
	return update[models.Teacher](ctx, c, pathTeachers, id, t)
}

func (c *Client) DeleteTeacher(ctx context.Context, id uint) error {
	return remove(ctx, c, pathTeachers, id)
}

func (c *Client) ListStudents(ctx context.Context, query url.Values) ([]models.Student, error) {
	return list[models.Student](ctx, c, pathStudents, query)
}

func (c *Client) CreateStudent(ctx context.Context, s models.Student) (*models.Student, error) {
	return create[models.Student](ctx, c, pathStudents, s)
}

func (c *Client) ListClassrooms(ctx context.Context, query url.Values) ([]models.Classroom, error) {
	return list[models.Classroom](ctx, c, pathClassrooms, query)
}

func (c *Client) ListLessonTypes(ctx context.Context, query url.Values) ([]models.LessonType, error) {
	return list[models.LessonType](ctx, c, pathLessonTypes, query)
}

func (c *Client) ListLessonSchedules(ctx context.Context, query url.Values) ([]models.LessonSchedule, error) {
	return list[models.LessonSchedule](ctx, c, pathSchedules, query)
}

func (c *Client) CreateLessonSchedule(ctx context.Context, s models.LessonSchedule) (*models.LessonSchedule, error) {
	return create[models.LessonSchedule](ctx, c, pathSchedules, s)
}

func (c *Client) DeleteLessonSchedule(ctx context.Context, id uint) error {
	return remove(ctx, c, pathSchedules, id)
}

func (c *Client) ListAttendances(ctx context.Context, query url.Values) ([]models.LessonAttendance, error) {
	return list[models.LessonAttendance](ctx, c, pathAttendances, query)
}

// MarkAttendanceRequest sets the status of one (schedule, date) occurrence.
type MarkAttendanceRequest struct {
	LessonScheduleID uint   `json:"lesson_schedule_id"`
	LessonDate       string `json:"lesson_date"`
	Status           string `json:"status"`
	Notes            string `json:"notes,omitempty"`
}

// AttendanceChange is the result of a mark. Created is false when an existing
// record was overwritten.
type AttendanceChange struct {
	Attendance     models.LessonAttendance `json:"attendance"`
	Created        bool                    `json:"created"`
	PreviousStatus string                  `json:"previous_status,omitempty"`
}

func (c *Client) MarkAttendance(ctx context.Context, req MarkAttendanceRequest) (*AttendanceChange, error) {
	var out AttendanceChange
	if err := c.do(ctx, http.MethodPut, pathAttendances+"/mark", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateLessonPayment(ctx context.Context, p models.LessonPayment) (*models.LessonPayment, error) {
	return create[models.LessonPayment](ctx, c, pathPayments, p)
}

func (c *Client) ListFinancialTransactions(ctx context.Context, query url.Values) ([]models.FinancialTransaction, error) {
	return list[models.FinancialTransaction](ctx, c, pathTransactions, query)
}

// dateQuery encodes an inclusive start_date/end_date range; zero times are omitted.
func dateQuery(from, to time.Time) url.Values {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("start_date", from.Format(weekgrid.DateLayout))
	}
	if !to.IsZero() {
		q.Set("end_date", to.Format(weekgrid.DateLayout))
	}
	return q
}

// FinanceSummary returns income, expense and net for transactions in [from, to].
func (c *Client) FinanceSummary(ctx context.Context, from, to time.Time) (*finance.Totals, error) {
	var out finance.Totals
	if err := c.do(ctx, http.MethodGet, pathTransactions+"/summary", dateQuery(from, to), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FinanceByCategory(ctx context.Context, from, to time.Time) ([]finance.CategoryTotal, error) {
	return list[finance.CategoryTotal](ctx, c, pathTransactions+"/by-category", dateQuery(from, to))
}

// SendSmsRequest addresses a student or a raw LINE recipient.
type SendSmsRequest struct {
	StudentID *uint  `json:"student_id,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Message   string `json:"message"`
}

func (c *Client) SendSms(ctx context.Context, req SendSmsRequest) (*models.SmsMessage, error) {
	return create[models.SmsMessage](ctx, c, pathSms+"/send", req)
}

// WeekQuery selects the week and filters of the server-resolved grid.
type WeekQuery struct {
	Date   time.Time
	Filter weekgrid.Filter
}

func (q WeekQuery) values() url.Values {
	v := url.Values{}
	if !q.Date.IsZero() {
		v.Set("date", q.Date.Format(weekgrid.DateLayout))
	}
	setID := func(key string, id uint) {
		if id != 0 {
			v.Set(key, strconv.FormatUint(uint64(id), 10))
		}
	}
	setID("teacher_id", q.Filter.TeacherID)
	setID("student_id", q.Filter.StudentID)
	setID("lesson_type_id", q.Filter.LessonTypeID)
	if q.Filter.Day != "" {
		v.Set("day", q.Filter.Day)
	}
	return v
}

// WeeklyGrid fetches the grid resolved by the server.
func (c *Client) WeeklyGrid(ctx context.Context, q WeekQuery) (*weekgrid.Grid, error) {
	var out weekgrid.Grid
	if err := c.do(ctx, http.MethodGet, pathSchedules+"/weekly-grid", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadWeek fetches the six collections of the week containing ref
// concurrently. Any failure fails the whole load. The result can be passed to
// weekgrid.Resolve after setting Slots and Filter.
func (c *Client) LoadWeek(ctx context.Context, ref time.Time) (weekgrid.Input, error) {
	start := weekgrid.WeekStart(ref)
	in := weekgrid.Input{Reference: ref}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Schedules, err = c.ListLessonSchedules(gctx, url.Values{"is_active": {"true"}})
		return err
	})
	g.Go(func() (err error) {
		in.Attendances, err = c.ListAttendances(gctx, dateQuery(start, start.AddDate(0, 0, 6)))
		return err
	})
	g.Go(func() (err error) {
		in.Students, err = c.ListStudents(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		in.Teachers, err = c.ListTeachers(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		in.Classrooms, err = c.ListClassrooms(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		in.LessonTypes, err = c.ListLessonTypes(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return weekgrid.Input{}, err
	}
	return in, nil
}
