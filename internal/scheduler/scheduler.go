package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/tazhate/medbot/config"
	"github.com/tazhate/medbot/internal/domain"
	"github.com/tazhate/medbot/internal/service"
)

// DoseNotifier surfaces a due reminder to the user. The implementation must
// eventually answer with exactly one of MedicationService.MarkTaken or
// Snooze for the record.
type DoseNotifier interface {
	NotifyDoseDue(med *domain.Medication, doseNumber int, delayed bool) error
}

type Scheduler struct {
	cron       *cron.Cron
	cfg        *config.Config
	medService *service.MedicationService
	calService *service.CalendarService
	notifier   DoseNotifier
}

func New(cfg *config.Config, medSvc *service.MedicationService, calSvc *service.CalendarService) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:       c,
		cfg:        cfg,
		medService: medSvc,
		calService: calSvc,
	}
}

func (s *Scheduler) SetNotifier(n DoseNotifier) {
	s.notifier = n
}

func (s *Scheduler) Start(ctx context.Context) error {
	// Dose check every minute
	if _, err := s.cron.AddFunc("* * * * *", s.checkDoses); err != nil {
		return fmt.Errorf("add dose check: %w", err)
	}

	// Nightly calendar publish
	if s.calService != nil && s.calService.IsConfigured() {
		if _, err := s.cron.AddFunc("10 0 * * *", s.syncCalendar); err != nil {
			return fmt.Errorf("add calendar sync: %w", err)
		}
	}

	s.cron.Start()
	log.Info().Str("tz", s.cfg.Timezone.String()).Msg("Scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Scheduler stopped")
}

// RecheckAfter schedules a one-shot dose check, used after a snooze so the
// deferred reminder fires on its own 5-minute mark instead of waiting for
// the minute grid.
func (s *Scheduler) RecheckAfter(d time.Duration) {
	time.AfterFunc(d, s.checkDoses)
}

func (s *Scheduler) checkDoses() {
	if s.notifier == nil {
		return
	}

	now := time.Now().In(s.cfg.Timezone)
	med := s.medService.EvaluateTick(now)
	if med == nil {
		return
	}

	if err := s.notifier.NotifyDoseDue(med, med.NextDoseNumber(), med.IsDelayed()); err != nil {
		log.Error().Err(err).Int64("id", med.ID).Str("name", med.Name).Msg("notify dose due")
		// The reminder never reached the user; free the slot so the next
		// tick retries it instead of starving every other record.
		if err := s.medService.ReleaseReminder(med.ID); err != nil {
			log.Error().Err(err).Int64("id", med.ID).Msg("release reminder")
		}
	}
}

func (s *Scheduler) syncCalendar() {
	result, err := s.calService.PublishDoseSchedule()
	if err != nil {
		log.Error().Err(err).Msg("calendar sync")
		return
	}
	log.Info().Int("added", result.Added).Int("deleted", result.Deleted).Msg("Calendar synced")
}
