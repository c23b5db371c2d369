package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicschool_go/models"
	"musicschool_go/services/weekgrid"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAPIErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"message wins", http.StatusBadRequest, `{"message":"Teacher is busy","error":"conflict"}`, "Teacher is busy"},
		{"error field", http.StatusNotFound, `{"error":"Lesson schedule not found"}`, "Lesson schedule not found"},
		{"blank fields fall back to status", http.StatusConflict, `{"message":"  ","error":""}`, "Conflict"},
		{"non json body", http.StatusBadGateway, `<html>bad gateway</html>`, "Bad Gateway"},
		{"unknown status", 599, ``, DefaultErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL).ListTeachers(context.Background(), nil)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.message, ErrorMessage(err))
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).ListStudents(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.NotEmpty(t, ErrorMessage(err))
}

func TestErrorMessageFallbacks(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, DefaultErrorMessage, ErrorMessage(&APIError{StatusCode: 500}))
	assert.Equal(t, "boom", ErrorMessage(errors.New("boom")))
}

func TestLoginKeepsToken(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		switch r.URL.Path {
		case "/api/auth/login":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "owner", body["username"])
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"message": "Login successful",
				"token":   "tok-123",
				"user":    map[string]interface{}{"id": 1, "username": "owner", "role": "owner"},
			})
		default:
			writeJSON(w, http.StatusOK, []models.Teacher{})
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/api/")
	res, err := c.Login(context.Background(), "owner", "secret")
	require.NoError(t, err)
	assert.Equal(t, "owner", res.User.Role)
	assert.Equal(t, "tok-123", c.Token())

	_, err = c.ListTeachers(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "Bearer tok-123"}, seen)
}

func TestMarkAttendance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/lesson_attendances/mark", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req MarkAttendanceRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusCreated, AttendanceChange{
			Attendance: models.LessonAttendance{LessonScheduleID: req.LessonScheduleID, LessonDate: req.LessonDate, Status: req.Status},
			Created:    true,
		})
	}))
	defer srv.Close()

	change, err := New(srv.URL, WithToken("t")).MarkAttendance(context.Background(), MarkAttendanceRequest{
		LessonScheduleID: 4, LessonDate: "2026-10-12", Status: models.AttendanceCompleted,
	})
	require.NoError(t, err)
	assert.True(t, change.Created)
	assert.Equal(t, uint(4), change.Attendance.LessonScheduleID)
	assert.Equal(t, models.AttendanceCompleted, change.Attendance.Status)
}

func TestWeeklyGridQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2026-10-15", q.Get("date"))
		assert.Equal(t, "3", q.Get("teacher_id"))
		assert.Equal(t, "", q.Get("student_id"))
		assert.Equal(t, "MONDAY", q.Get("day"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"week_start": "2026-10-12",
			"slots":      []string{"09:00", "10:00"},
		})
	}))
	defer srv.Close()

	grid, err := New(srv.URL).WeeklyGrid(context.Background(), WeekQuery{
		Date:   time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		Filter: weekgrid.Filter{TeacherID: 3, Day: "MONDAY"},
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-12", grid.WeekStart)
	assert.Equal(t, []string{"09:00", "10:00"}, grid.Slots)
}

func weekServer(t *testing.T, failPath string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == failPath {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load"})
			return
		}
		switch r.URL.Path {
		case pathSchedules:
			assert.Equal(t, "true", r.URL.Query().Get("is_active"))
			s := models.LessonSchedule{StudentID: 1, ClassroomID: 2, DayOfWeek: "MONDAY", StartTime: "10:00", IsActive: true}
			s.ID = 5
			writeJSON(w, http.StatusOK, []models.LessonSchedule{s})
		case pathAttendances:
			assert.Equal(t, "2026-10-12", r.URL.Query().Get("start_date"))
			assert.Equal(t, "2026-10-18", r.URL.Query().Get("end_date"))
			writeJSON(w, http.StatusOK, []models.LessonAttendance{{LessonScheduleID: 5, LessonDate: "2026-10-12", Status: "COMPLETED"}})
		case pathStudents:
			s := models.Student{FirstName: "Mia", Status: models.StudentActive}
			s.ID = 1
			writeJSON(w, http.StatusOK, []models.Student{s})
		case pathTeachers:
			writeJSON(w, http.StatusOK, []models.Teacher{})
		case pathClassrooms:
			room := models.Classroom{Name: "Room B", IsActive: true}
			room.ID = 2
			writeJSON(w, http.StatusOK, []models.Classroom{room})
		case pathLessonTypes:
			writeJSON(w, http.StatusOK, []models.LessonType{})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestLoadWeek(t *testing.T) {
	srv := weekServer(t, "")
	defer srv.Close()

	ref := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	in, err := New(srv.URL).LoadWeek(context.Background(), ref)
	require.NoError(t, err)
	assert.Len(t, in.Schedules, 1)
	assert.Len(t, in.Attendances, 1)
	assert.Len(t, in.Students, 1)
	assert.Len(t, in.Classrooms, 1)
	assert.Equal(t, ref, in.Reference)

	in.Slots = weekgrid.HourSlots(9, 12)
	grid := weekgrid.Resolve(in)
	cell, ok := grid.Cell("MONDAY", 2, "10:00")
	require.True(t, ok)
	assert.Equal(t, uint(5), cell.Schedule.ID)
	assert.Equal(t, "2026-10-12", cell.Date)
	assert.Equal(t, "COMPLETED", cell.Status)
}

func TestLoadWeekFailsAsAWhole(t *testing.T) {
	srv := weekServer(t, pathClassrooms)
	defer srv.Close()

	in, err := New(srv.URL).LoadWeek(context.Background(), time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Failed to load", apiErr.Message)
	assert.Empty(t, in.Schedules)
}

func TestWithTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusOK, []models.Teacher{})
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithTimeout(20*time.Millisecond)).ListTeachers(context.Background(), nil)
	assert.ErrorIs(t, err, ErrTransport)
}
