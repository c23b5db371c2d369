package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicschool_go/services/weekgrid"
)

func TestWsURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
		err    bool
	}{
		{"http://localhost:8080/api", "ws://localhost:8080/ws?token=abc", false},
		{"https://school.example.com/api/", "wss://school.example.com/ws?token=abc", false},
		{"http://localhost:8080", "ws://localhost:8080/ws?token=abc", false},
		{"ftp://localhost/api", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			got, err := wsURL(tt.server, "abc")
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2026, 10, 12, 16, 5, 0, 0, time.UTC)
	line := formatEvent([]byte(`{"type":"attendance.updated","data":{"created":true}}`), at)
	assert.True(t, strings.HasPrefix(line, "16:05:00  attendance.updated"))
	assert.True(t, strings.HasSuffix(line, `{"created":true}`))

	assert.Equal(t, "16:05:00  plain text", formatEvent([]byte("plain text\n"), at))
}

func TestParseDay(t *testing.T) {
	d, err := parseDay("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = parseDay("2026-10-15")
	require.NoError(t, err)
	assert.Equal(t, time.October, d.Month())

	_, err = parseDay("15.10.2026")
	assert.Error(t, err)
}

func TestPrintGrid(t *testing.T) {
	grid := &weekgrid.Grid{
		WeekStart:  "2026-10-12",
		Classrooms: []weekgrid.Room{{ID: 2, Name: "Room B"}},
		Cells: []weekgrid.Cell{{
			Day: "MONDAY", Date: "2026-10-12", ClassroomID: 2, Slot: "16:00",
			StudentName: "Mia Schmidt", TeacherName: "Anna Keller", LessonTypeName: "Piano",
			Display: weekgrid.Presentation{Label: "Completed"},
		}},
		Conflicts: []weekgrid.Conflict{{Day: "MONDAY", ClassroomID: 2, Slot: "16:00", ShownScheduleID: 1, HiddenScheduleID: 7}},
	}
	var buf bytes.Buffer
	printGrid(&buf, grid)

	out := buf.String()
	assert.Contains(t, out, "Week of 2026-10-12")
	assert.Contains(t, out, "Room B")
	assert.Contains(t, out, "Mia Schmidt")
	assert.Contains(t, out, "schedule 7 hidden behind 1")
}

func TestReadEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"schedule.created","data":{"id":3}}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	defer srv.Close()

	target, err := wsURL(srv.URL, "abc")
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	require.NoError(t, err)
	defer conn.Close()

	var out bytes.Buffer
	err = readEvents(conn, &out, func() error { return nil })
	require.NoError(t, err)
	assert.Contains(t, out.String(), "schedule.created")
	assert.Contains(t, out.String(), `{"id":3}`)
}
