package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"calexport/config"
	"calexport/internal/domain"
	"calexport/internal/service"
)

// Scheduler runs the export pipeline on a cron schedule over a rolling
// date range starting today.
type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	export *service.ExportService
}

func New(cfg *config.Config, exportSvc *service.ExportService) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:   c,
		cfg:    cfg,
		export: exportSvc,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.ExportCron == "" {
		return fmt.Errorf("EXPORT_CRON is not set")
	}

	if _, err := s.cron.AddFunc(s.cfg.ExportCron, func() { s.runExport(ctx) }); err != nil {
		return fmt.Errorf("add export job: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (cron: %s, range: %d days, format: %s)",
		s.cfg.ExportCron, s.cfg.ExportDays, s.cfg.DefaultFormat)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) runExport(ctx context.Context) {
	now := time.Now().In(s.cfg.Timezone)
	rng := domain.DateRange{
		Start: now,
		End:   now.AddDate(0, 0, s.cfg.ExportDays-1),
	}

	result, err := s.export.Run(ctx, rng, s.cfg.DefaultFormat)
	if errors.Is(err, service.ErrNoEvents) {
		log.Printf("Scheduled export: no events in the next %d days", s.cfg.ExportDays)
		return
	}
	if err != nil {
		log.Printf("Scheduled export failed: %v", err)
		return
	}

	if result.Success {
		log.Printf("Scheduled export done: %s (file %s)", result.Message, result.FileID)
	} else {
		log.Printf("Scheduled export failed: %s", result.Message)
	}
}
