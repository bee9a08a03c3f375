package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoelite-platform/procurement-service/internal/domain"
	"github.com/autoelite-platform/procurement-service/pkg/cloudevents"
)

type monitorFixture struct {
	monitor   *StockMonitor
	parts     *fakePartRepo
	alerts    *fakeAlertRepo
	publisher *fakePublisher
}

func newMonitorFixture(t *testing.T, cooldown time.Duration) *monitorFixture {
	t.Helper()

	parts := newFakePartRepo()
	alerts := newFakeAlertRepo()
	publisher := &fakePublisher{}
	factory := cloudevents.NewEventFactory(cloudevents.SourceStockMonitor)

	return &monitorFixture{
		monitor:   NewStockMonitor(parts, alerts, publisher, factory, testLogger(), testMetrics(), cooldown),
		parts:     parts,
		alerts:    alerts,
		publisher: publisher,
	}
}

func (f *monitorFixture) addPart(t *testing.T, code string, onHand, reserved, reorderLevel int) *domain.Part {
	t.Helper()
	part, err := domain.NewPart(code, code+" name", "misc", 1000, domain.StockLevel{
		OnHand: onHand, Reserved: reserved, ReorderLevel: reorderLevel,
	})
	require.NoError(t, err)
	return f.parts.add(part)
}

func TestScanAlertsLowStockParts(t *testing.T) {
	f := newMonitorFixture(t, time.Hour)
	f.addPart(t, "LOW-1", 5, 0, 10)
	f.addPart(t, "LOW-2", 12, 4, 10) // available 8
	f.addPart(t, "OK-1", 50, 0, 10)
	f.addPart(t, "NO-LEVEL", 0, 0, 0) // reorderLevel zero never alerts

	result, err := f.monitor.Scan(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Count)
	assert.Zero(t, result.Failed)

	events := f.publisher.published()
	require.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, cloudevents.LowStockAlert, event.Type)
	}
}

func TestScanSkipsInactiveParts(t *testing.T) {
	f := newMonitorFixture(t, time.Hour)
	part := f.addPart(t, "LOW-1", 5, 0, 10)
	part.Deactivate()

	result, err := f.monitor.Scan(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Zero(t, result.Count)
	assert.Empty(t, f.publisher.published())
}

func TestScanCooldownSuppressesRepeatAlerts(t *testing.T) {
	f := newMonitorFixture(t, time.Hour)
	f.addPart(t, "LOW-1", 5, 0, 10)

	first, err := f.monitor.Scan(context.Background(), TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count)

	second, err := f.monitor.Scan(context.Background(), TriggerScheduled)
	require.NoError(t, err)
	assert.Zero(t, second.Count)
	assert.True(t, second.Success)

	assert.Len(t, f.publisher.published(), 1)
}

func TestScanAlertsAgainAfterCooldown(t *testing.T) {
	f := newMonitorFixture(t, time.Hour)
	part := f.addPart(t, "LOW-1", 5, 0, 10)

	_, err := f.monitor.Scan(context.Background(), TriggerScheduled)
	require.NoError(t, err)

	// Age the claim past the window
	f.alerts.lastSeen[part.ID.Hex()] = time.Now().Add(-2 * time.Hour)

	result, err := f.monitor.Scan(context.Background(), TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Len(t, f.publisher.published(), 2)
}

func TestScanPublishFailureDoesNotAbort(t *testing.T) {
	f := newMonitorFixture(t, time.Hour)
	f.addPart(t, "LOW-1", 5, 0, 10)
	f.addPart(t, "LOW-2", 3, 0, 10)
	f.publisher.failFirst = true

	result, err := f.monitor.Scan(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, f.publisher.published(), 1)
}

func TestScanReadFailureAborts(t *testing.T) {
	f := newMonitorFixture(t, time.Hour)
	f.parts.findErr = errors.New("connection reset")

	result, err := f.monitor.Scan(context.Background(), TriggerScheduled)
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connection reset")
	assert.Empty(t, f.publisher.published())
}

func TestScanClaimFailureCountsAsFailed(t *testing.T) {
	f := newMonitorFixture(t, time.Hour)
	f.addPart(t, "LOW-1", 5, 0, 10)
	f.alerts.claimErr = errors.New("write conflict")

	result, err := f.monitor.Scan(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.Count)
	assert.Equal(t, 1, result.Failed)
}

func TestSchedulerRunsScans(t *testing.T) {
	f := newMonitorFixture(t, time.Hour)
	f.addPart(t, "LOW-1", 5, 0, 10)

	scheduler := NewScheduler(f.monitor, 20*time.Millisecond, testLogger())
	scheduler.Start(context.Background())
	scheduler.Start(context.Background()) // second Start is a no-op

	assert.Eventually(t, func() bool {
		return len(f.publisher.published()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	scheduler.Stop()
	scheduler.Stop() // second Stop is a no-op

	// No further scans after Stop
	count := len(f.publisher.published())
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, count, len(f.publisher.published()))
}
