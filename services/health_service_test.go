package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(name, impact, status string) Probe {
	return Probe{Name: name, Impact: impact, Check: func(context.Context) DependencyStatus {
		return DependencyStatus{Status: status}
	}}
}

func TestHealthReportStatus(t *testing.T) {
	tests := []struct {
		name   string
		probes []Probe
		want   string
	}{
		{"no probes", nil, StatusOK},
		{"all up", []Probe{probe("mysql", StatusCritical, DependencyUp), probe("redis", StatusDegraded, DependencyUp)}, StatusOK},
		{"optional down", []Probe{probe("mysql", StatusCritical, DependencyUp), probe("redis", StatusDegraded, DependencyDown)}, StatusDegraded},
		{"critical down", []Probe{probe("mysql", StatusCritical, DependencyDown), probe("redis", StatusDegraded, DependencyDown)}, StatusCritical},
		{"disabled is fine", []Probe{StaticProbe("s3", false, nil)}, StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewHealthService("", "")
			for _, p := range tc.probes {
				s.Register(p)
			}
			r := s.Report(context.Background())
			assert.Equal(t, tc.want, r.Status)
			assert.Len(t, r.Dependencies, len(tc.probes))
			assert.Equal(t, "Music School API", r.Service)
		})
	}
}

func TestHealthReportKeepsProbeOrder(t *testing.T) {
	s := NewHealthService("svc", "2.0.0")
	s.Register(probe("a", StatusOK, DependencyUp))
	s.Register(StaticProbe("line", true, map[string]interface{}{"mode": "push"}))

	r := s.Report(context.Background())
	require.Len(t, r.Dependencies, 2)
	assert.Equal(t, "a", r.Dependencies[0].Name)
	assert.Equal(t, "line", r.Dependencies[1].Name)
	assert.Equal(t, DependencyUp, r.Dependencies[1].Status)
	assert.Equal(t, "2.0.0", r.Version)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 503, HTTPStatus(StatusCritical))
	assert.Equal(t, 200, HTTPStatus(StatusDegraded))
}

func TestHumanizeDuration(t *testing.T) {
	assert.Equal(t, "0s", humanizeDuration(0))
	assert.Equal(t, "1m 5s", humanizeDuration(65*time.Second))
	assert.Equal(t, "1d 2h", humanizeDuration(26*time.Hour))
}
