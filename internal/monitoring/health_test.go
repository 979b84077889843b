package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/isdelr/user-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (p *fakePinger) PingContext(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePinger) set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type fakeEvents struct {
	mu    sync.Mutex
	types []string
}

func (e *fakeEvents) CreateEvent(ctx context.Context, eventType, level, message string, userID *string) (models.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, eventType)
	return models.Event{Type: eventType}, nil
}

func (e *fakeEvents) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return nil, nil
}

func TestNewHealthMonitor_InvalidSchedule(t *testing.T) {
	_, err := NewHealthMonitor(&fakePinger{}, nil, "not a schedule")
	assert.ErrorContains(t, err, "invalid health check schedule")
}

func TestHealthMonitor_Transitions(t *testing.T) {
	pinger := &fakePinger{}
	events := &fakeEvents{}
	m, err := NewHealthMonitor(pinger, events, "@every 1h")
	require.NoError(t, err)
	ctx := context.Background()

	status := m.Check(ctx)
	assert.True(t, status.Up)
	assert.Empty(t, events.types, "first healthy probe is not a transition")

	pinger.set(errors.New("connection refused"))
	status = m.Check(ctx)
	assert.False(t, status.Up)
	assert.Equal(t, "connection refused", status.LastError)

	// Still down: no duplicate event.
	m.Check(ctx)

	pinger.set(nil)
	m.Check(ctx)

	assert.Equal(t, []string{models.EventStoreDown, models.EventStoreUp}, events.types)
	assert.True(t, m.Status().Up)
}

func TestHealthMonitor_FirstProbeDown(t *testing.T) {
	events := &fakeEvents{}
	m, err := NewHealthMonitor(&fakePinger{err: errors.New("down")}, events, "@every 1h")
	require.NoError(t, err)

	m.Check(context.Background())
	assert.Equal(t, []string{models.EventStoreDown}, events.types)
}

func TestHealthMonitor_RunStopAndReport(t *testing.T) {
	m, err := NewHealthMonitor(&fakePinger{}, nil, "@every 1h")
	require.NoError(t, err)

	m.Run()
	m.Stop()

	report := m.Report(context.Background())
	assert.True(t, report.Store.Up)
	assert.False(t, report.Store.CheckedAt.IsZero())
	assert.NotZero(t, report.Process.PID)
	assert.Positive(t, report.Process.Goroutines)
}
