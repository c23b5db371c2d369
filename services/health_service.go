package services

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"musicschool_go/config"
	"musicschool_go/database"

	"golang.org/x/sync/errgroup"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusCritical = "critical"

	DependencyUp       = "up"
	DependencyDown     = "down"
	DependencyDisabled = "disabled"

	defaultServiceName = "Music School API"
	defaultVersion     = "1.0.0"
	defaultTimeout     = 1500 * time.Millisecond
)

// Probe checks one dependency. Impact is the overall status a failure causes.
type Probe struct {
	Name   string
	Impact string
	Check  func(ctx context.Context) DependencyStatus
}

// HealthService aggregates dependency probes into a report.
type HealthService struct {
	serviceName string
	version     string
	startTime   time.Time
	timeout     time.Duration

	mu     sync.RWMutex
	probes []Probe
}

type HealthReport struct {
	Status        string             `json:"status"`
	Service       string             `json:"service"`
	Version       string             `json:"version"`
	Environment   string             `json:"environment"`
	Time          time.Time          `json:"time"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	UptimeHuman   string             `json:"uptime_human"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	Flags         map[string]bool    `json:"flags"`
}

type DependencyStatus struct {
	Name      string                 `json:"name"`
	Status    string                 `json:"status"`
	LatencyMs int64                  `json:"latency_ms"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

type RuntimeMetrics struct {
	GoVersion      string `json:"go_version"`
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	SysBytes       uint64 `json:"sys_bytes"`
	NumGC          uint32 `json:"num_gc"`
}

func NewHealthService(serviceName, version string) *HealthService {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = defaultServiceName
	}
	if strings.TrimSpace(version) == "" {
		version = defaultVersion
	}
	return &HealthService{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		timeout:     defaultTimeout,
	}
}

func (s *HealthService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Register adds a probe. Probes run concurrently on every report.
func (s *HealthService) Register(p Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = append(s.probes, p)
}

// RegisterDefaults adds the MySQL and Redis probes.
func (s *HealthService) RegisterDefaults() {
	s.Register(Probe{Name: "mysql", Impact: StatusCritical, Check: checkMySQL})
	s.Register(Probe{Name: "redis", Impact: StatusDegraded, Check: checkRedis})
}

// StaticProbe reports a component that is either configured or disabled.
func StaticProbe(name string, enabled bool, details map[string]interface{}) Probe {
	return Probe{Name: name, Impact: StatusOK, Check: func(context.Context) DependencyStatus {
		st := DependencyDisabled
		if enabled {
			st = DependencyUp
		}
		return DependencyStatus{Name: name, Status: st, Details: details}
	}}
}

func (s *HealthService) Report(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.RLock()
	probes := append([]Probe(nil), s.probes...)
	s.mu.RUnlock()

	deps := make([]DependencyStatus, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range probes {
		i, p := i, p
		g.Go(func() error {
			start := time.Now()
			d := p.Check(gctx)
			d.Name = p.Name
			if d.LatencyMs == 0 {
				d.LatencyMs = time.Since(start).Milliseconds()
			}
			deps[i] = d
			return nil
		})
	}
	_ = g.Wait()

	status := StatusOK
	for i, d := range deps {
		if d.Status == DependencyDown {
			status = combineStatus(status, probes[i].Impact)
		}
	}

	uptime := time.Since(s.startTime)
	return HealthReport{
		Status:        status,
		Service:       s.serviceName,
		Version:       s.version,
		Environment:   currentEnvironment(),
		Time:          time.Now().UTC(),
		UptimeSeconds: uptime.Seconds(),
		UptimeHuman:   humanizeDuration(uptime),
		Dependencies:  deps,
		Runtime:       collectRuntime(),
		Flags:         collectFlags(),
	}
}

// HTTPStatus maps an overall status to an HTTP status code.
func HTTPStatus(status string) int {
	if status == StatusCritical {
		return 503
	}
	return 200
}

func checkMySQL(ctx context.Context) DependencyStatus {
	dep := DependencyStatus{Name: "mysql"}
	if err := database.Ping(ctx); err != nil {
		dep.Status = DependencyDown
		dep.Error = err.Error()
		return dep
	}
	dep.Status = DependencyUp
	if sqlDB, err := database.DB.DB(); err == nil {
		st := sqlDB.Stats()
		dep.Details = map[string]interface{}{
			"open_connections": st.OpenConnections,
			"in_use":           st.InUse,
			"idle":             st.Idle,
			"wait_count":       st.WaitCount,
		}
	}
	return dep
}

func checkRedis(ctx context.Context) DependencyStatus {
	dep := DependencyStatus{Name: "redis"}
	client := database.GetRedisClient()
	if client == nil {
		dep.Status = DependencyDisabled
		return dep
	}
	if err := client.Ping(ctx).Err(); err != nil {
		dep.Status = DependencyDown
		dep.Error = err.Error()
		return dep
	}
	dep.Status = DependencyUp
	dep.Details = map[string]interface{}{"address": client.Options().Addr}
	return dep
}

func collectRuntime() RuntimeMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeMetrics{
		GoVersion:      runtime.Version(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
		SysBytes:       mem.Sys,
		NumGC:          mem.NumGC,
	}
}

func collectFlags() map[string]bool {
	cfg := config.AppConfig
	if cfg == nil {
		return map[string]bool{}
	}
	return map[string]bool{
		"skip_migrate": cfg.SkipMigrate,
		"seed_data":    cfg.SeedData,
		"messaging":    cfg.LineChannelSecret != "" && cfg.LineChannelToken != "",
		"s3":           cfg.S3BucketName != "",
	}
}

func currentEnvironment() string {
	if config.AppConfig == nil || strings.TrimSpace(config.AppConfig.AppEnv) == "" {
		return "unknown"
	}
	return config.AppConfig.AppEnv
}

func combineStatus(current, candidate string) string {
	order := map[string]int{StatusOK: 0, StatusDegraded: 1, StatusCritical: 2}
	if order[candidate] > order[current] {
		return candidate
	}
	return current
}

func humanizeDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d %= 24 * time.Hour
	hours := d / time.Hour
	d %= time.Hour
	minutes := d / time.Minute
	seconds := (d % time.Minute) / time.Second

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}
