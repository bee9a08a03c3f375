package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/autoelite-platform/procurement-service/internal/domain"
	"github.com/autoelite-platform/procurement-service/pkg/cloudevents"
	"github.com/autoelite-platform/procurement-service/pkg/kafka"
	"github.com/autoelite-platform/procurement-service/pkg/logging"
	"github.com/autoelite-platform/procurement-service/pkg/metrics"
)

// Scan triggers
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// DefaultCooldown is the minimum gap between two alerts for the same part
const DefaultCooldown = 12 * time.Hour

// DefaultScanInterval is how often the scheduler runs a scan
const DefaultScanInterval = time.Hour

// AlertPublisher is the outbound side of the monitor; satisfied by the
// circuit-breaker Kafka producer
type AlertPublisher interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.CloudEvent) error
}

// ScanResult is what a scan cycle reports back
type ScanResult struct {
	Success    bool   `json:"success"`
	Count      int    `json:"count"`
	Failed     int    `json:"failed,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// StockMonitor periodically flags parts whose available quantity has fallen
// to or below the reorder level. The cooldown claim makes overlapping scans
// safe: at most one alert per part per window, no matter how many scans run.
type StockMonitor struct {
	parts     domain.PartRepository
	alerts    domain.AlertStateRepository
	publisher AlertPublisher
	factory   *cloudevents.EventFactory
	logger    *logging.Logger
	metrics   *metrics.Metrics
	cooldown  time.Duration
}

// NewStockMonitor creates a new stock monitor
func NewStockMonitor(
	parts domain.PartRepository,
	alerts domain.AlertStateRepository,
	publisher AlertPublisher,
	factory *cloudevents.EventFactory,
	logger *logging.Logger,
	m *metrics.Metrics,
	cooldown time.Duration,
) *StockMonitor {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &StockMonitor{
		parts:     parts,
		alerts:    alerts,
		publisher: publisher,
		factory:   factory,
		logger:    logger.WithComponent("stock-monitor"),
		metrics:   m,
		cooldown:  cooldown,
	}
}

// Scan runs one monitoring cycle. A failure to read the part collection
// aborts the cycle; per-part notify failures are logged and counted but do
// not stop the remaining parts. Cooldown state only advances for parts
// whose claim succeeded, so nothing is lost beyond the current cycle.
func (m *StockMonitor) Scan(ctx context.Context, trigger string) (*ScanResult, error) {
	start := time.Now()

	parts, err := m.parts.FindLowStock(ctx)
	if err != nil {
		m.metrics.RecordStockScan(trigger, false, time.Since(start))
		m.logger.WithError(err).Error("Stock scan aborted", "trigger", trigger)
		return &ScanResult{
			Success:    false,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      err.Error(),
		}, fmt.Errorf("failed to query low stock parts: %w", err)
	}

	alerted := 0
	failed := 0
	now := time.Now()

	for _, part := range parts {
		claimed, err := m.alerts.Claim(ctx, part.ID.Hex(), now, m.cooldown)
		if err != nil {
			failed++
			m.logger.WithError(err).Error("Failed to claim alert slot", "partCode", part.PartCode)
			continue
		}
		if !claimed {
			// Alerted within the cooldown window already
			continue
		}

		if err := m.notify(ctx, part); err != nil {
			failed++
			m.logger.WithError(err).Error("Failed to publish low stock alert", "partCode", part.PartCode)
			continue
		}

		alerted++
		m.metrics.RecordLowStockAlert()
	}

	duration := time.Since(start)
	m.metrics.RecordStockScan(trigger, true, duration)
	m.logger.Info("Stock scan complete",
		"trigger", trigger,
		"candidates", len(parts),
		"alerted", alerted,
		"failed", failed,
		"durationMs", duration.Milliseconds(),
	)

	return &ScanResult{
		Success:    true,
		Count:      alerted,
		Failed:     failed,
		DurationMs: duration.Milliseconds(),
	}, nil
}

func (m *StockMonitor) notify(ctx context.Context, part *domain.Part) error {
	event := m.factory.CreateLowStockAlertEvent(
		ctx,
		part.ID.Hex(),
		part.PartCode,
		part.Name,
		part.Available(),
		part.Stock.ReorderLevel,
	)
	return m.publisher.PublishEvent(ctx, kafka.Topics.StockEvents, event)
}

// Scheduler runs scans on a fixed interval until stopped
type Scheduler struct {
	monitor  *StockMonitor
	interval time.Duration
	logger   *logging.Logger

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewScheduler creates a new scan scheduler
func NewScheduler(monitor *StockMonitor, interval time.Duration, logger *logging.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	return &Scheduler{
		monitor:  monitor,
		interval: interval,
		logger:   logger.WithComponent("scan-scheduler"),
	}
}

// Start launches the scan loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.stoppedCh = make(chan struct{})

	go s.run(ctx, s.stopCh, s.stoppedCh)
	s.logger.Info("Scan scheduler started", "interval", s.interval.String())
}

// Stop halts the loop and waits for an in-flight scan to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	stopped := s.stoppedCh
	s.mu.Unlock()

	<-stopped
	s.logger.Info("Scan scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, stoppedCh chan<- struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.monitor.Scan(ctx, TriggerScheduled); err != nil {
				// Already logged by the monitor; the next tick retries
				continue
			}
		}
	}
}
