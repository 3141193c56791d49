// Package sweeper runs the periodic expiry scan that populates the
// alerts table. The engine derives the expiry-risk report; the sweeper
// turns report rows into alerts, skipping ones already raised.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/healthops/credwatch/internal/engine"
	"github.com/healthops/credwatch/pkg/models"
	"github.com/healthops/credwatch/pkg/repository"
)

type Sweeper struct {
	engine     *engine.Engine
	alerts     repository.AlertRepo
	logger     *slog.Logger
	interval   time.Duration
	windowDays int
	stop       chan struct{}
	wg         sync.WaitGroup
}

// New creates a sweeper. An interval of zero or less disables the
// periodic scan; RunOnce still works.
func New(eng *engine.Engine, alerts repository.AlertRepo, logger *slog.Logger, interval time.Duration, windowDays int) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	return &Sweeper{
		engine:     eng,
		alerts:     alerts,
		logger:     logger,
		interval:   interval,
		windowDays: windowDays,
		stop:       make(chan struct{}),
	}
}

// Start launches the scan loop. It returns immediately; the loop runs
// until Stop is called or the context ends.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("sweeper disabled", "interval", s.interval)
		return
	}
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop signals the loop to stop and waits for it.
func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			s.logger.Info("sweeper stopping")
			return
		case <-ctx.Done():
			s.logger.Info("context canceled, sweeper exiting")
			return
		case <-ticker.C:
			if n, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("expiry sweep", "err", err)
			} else if n > 0 {
				s.logger.Info("expiry sweep raised alerts", "count", n)
			}
		}
	}
}

// RunOnce performs a single expiry scan and returns how many new alerts
// it raised. Rows whose alert message was already recorded are skipped,
// so repeated sweeps over an unchanged window are idempotent.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	rows, err := s.engine.ListExpiring(ctx, s.windowDays, "", "")
	if err != nil {
		return 0, fmt.Errorf("list expiring credentials: %w", err)
	}

	raised := 0
	for i := range rows {
		row := &rows[i]
		msg := alertMessage(&row.Credential)
		exists, err := s.alerts.AlertExists(ctx, row.Provider.ID, msg)
		if err != nil {
			return raised, fmt.Errorf("check alert for provider %d: %w", row.Provider.ID, err)
		}
		if exists {
			continue
		}
		if _, err := s.alerts.CreateAlert(ctx, &models.Alert{ProviderID: row.Provider.ID, Message: msg}); err != nil {
			return raised, fmt.Errorf("create alert for provider %d: %w", row.Provider.ID, err)
		}
		raised++
	}
	return raised, nil
}

// alertMessage is the dedup key: it names the credential and its expiry
// date but not days-to-expiry, so the same expiring credential raises
// exactly one alert across daily sweeps.
func alertMessage(c *models.Credential) string {
	expiry := ""
	if c.ExpiryDate != nil {
		expiry = *c.ExpiryDate
	}
	return fmt.Sprintf("%s %s issued by %s expires on %s", c.Type, c.Number, c.Issuer, expiry)
}
