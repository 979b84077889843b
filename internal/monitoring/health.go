package monitoring

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/isdelr/user-api/internal/models"
	"github.com/isdelr/user-api/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"
)

const probeTimeout = 5 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StoreStatus is the outcome of the latest store probe.
type StoreStatus struct {
	Up        bool      `json:"up"`
	CheckedAt time.Time `json:"checkedAt"`
	LastError string    `json:"lastError,omitempty"`
}

// ProcessStats describes the running service.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Goroutines int     `json:"goroutines"`
	Uptime     string  `json:"uptime"`
}

// HealthReport is served by the health endpoint.
type HealthReport struct {
	Store   StoreStatus  `json:"store"`
	Process ProcessStats `json:"process"`
}

// HealthMonitor periodically probes the store on a cron schedule and keeps
// the latest status. Up/down transitions are written to the event log.
type HealthMonitor struct {
	store    Pinger
	eventSvc services.EventServiceProvider
	cron     *cron.Cron
	started  time.Time

	mu     sync.RWMutex
	status StoreStatus
	probed bool
}

// NewHealthMonitor creates a monitor running the probe on schedule (standard
// cron syntax or descriptors such as "@every 30s"). eventSvc may be nil.
func NewHealthMonitor(store Pinger, eventSvc services.EventServiceProvider, schedule string) (*HealthMonitor, error) {
	m := &HealthMonitor{
		store:    store,
		eventSvc: eventSvc,
		cron:     cron.New(),
		started:  time.Now(),
	}
	if _, err := m.cron.AddFunc(schedule, func() { m.Check(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid health check schedule %q: %w", schedule, err)
	}
	return m, nil
}

// Run performs an initial probe and starts the schedule.
func (m *HealthMonitor) Run() {
	log.Info().Msg("Starting store health monitor...")
	m.Check(context.Background())
	m.cron.Start()
}

// Stop halts the schedule and waits for a running probe to finish.
func (m *HealthMonitor) Stop() {
	<-m.cron.Stop().Done()
	log.Info().Msg("Stopped store health monitor.")
}

// Check probes the store once and records the result.
func (m *HealthMonitor) Check(ctx context.Context) StoreStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := m.store.PingContext(ctx)
	status := StoreStatus{Up: err == nil, CheckedAt: time.Now().UTC()}
	if err != nil {
		status.LastError = err.Error()
	}

	m.mu.Lock()
	previous, probed := m.status, m.probed
	m.status, m.probed = status, true
	m.mu.Unlock()

	switch {
	case !status.Up && (!probed || previous.Up):
		log.Warn().Err(err).Msg("Store is unreachable")
		m.recordEvent(ctx, models.EventStoreDown, models.LevelWarn, fmt.Sprintf("Store is unreachable: %v", err))
	case status.Up && probed && !previous.Up:
		log.Info().Msg("Store is reachable again")
		m.recordEvent(ctx, models.EventStoreUp, models.LevelInfo, "Store is reachable again.")
	}
	return status
}

func (m *HealthMonitor) recordEvent(ctx context.Context, eventType, level, message string) {
	if m.eventSvc == nil {
		return
	}
	// When the store is down this write fails too; the log line above is
	// the record in that case.
	if _, err := m.eventSvc.CreateEvent(ctx, eventType, level, message, nil); err != nil {
		log.Debug().Err(err).Str("event_type", eventType).Msg("Health monitor could not record event")
	}
}

// Status returns the latest probe result.
func (m *HealthMonitor) Status() StoreStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Report combines the store status with process statistics.
func (m *HealthMonitor) Report(ctx context.Context) HealthReport {
	return HealthReport{Store: m.Status(), Process: m.processStats(ctx)}
}

func (m *HealthMonitor) processStats(ctx context.Context) ProcessStats {
	stats := ProcessStats{
		PID:        int32(os.Getpid()),
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(m.started).Round(time.Second).String(),
	}

	proc, err := process.NewProcessWithContext(ctx, stats.PID)
	if err != nil {
		log.Debug().Err(err).Msg("Could not inspect own process")
		return stats
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		stats.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	return stats
}
