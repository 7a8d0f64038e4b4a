package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/metrics"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
)

// HousekeepingService periodically clears expired verification codes and
// reset tokens. Expired secrets are already unusable; this only keeps stale
// values from lingering in the store.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Interval time.Duration
	Now      func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. If interval is 0 or
// negative, it defaults to 1 hour.
func NewHousekeepingService(
	st store.Store,
	logger *slog.Logger,
	m *metrics.Metrics,
	interval time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Metrics:  m,
		Interval: interval,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the worker and waits for an in-progress sweep to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep once on startup
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep clears every expired secret pair and returns how many accounts were
// touched.
func (s *HousekeepingService) Sweep(ctx context.Context) int64 {
	n, err := s.Store.Accounts().ClearExpiredSecrets(ctx, s.Now().UTC())
	if err != nil {
		s.Logger.Error("failed to clear expired secrets", "error", err)
		return 0
	}

	s.Metrics.ExpiredSecretsCleared(n)
	s.Logger.Debug("housekeeping sweep completed", "cleared", n)
	return n
}
