package service

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tazhate/medbot/internal/domain"
	"github.com/tazhate/medbot/internal/storage"
)

// SnoozeStep is the fixed deferral applied to a snoozed reminder.
const SnoozeStep = 5 * time.Minute

// MedicationService owns the reminder state machine. A tick (minute
// resolution) surfaces at most one due record; the user answers with exactly
// one of MarkTaken or Snooze. Ticks and Telegram callbacks run on different
// goroutines, so every transition is serialized behind one mutex and the
// store stays the single source of truth: records are re-read per operation
// and a mutation counts only once persisted.
type MedicationService struct {
	mu       sync.Mutex
	storage  *storage.Storage
	timezone *time.Location

	// notified holds the id of the one record currently surfaced and
	// awaiting a response. Nil when no reminder is pending. notifiedPrev
	// keeps the notification time the surfacing overwrote, so a failed
	// delivery can be rolled back.
	notified     *int64
	notifiedPrev *string
}

func NewMedicationService(s *storage.Storage, tz *time.Location) *MedicationService {
	if tz == nil {
		tz = time.Local
	}
	return &MedicationService{
		storage:  s,
		timezone: tz,
	}
}

// Create validates and registers a new medication. The time is normalized to
// two-digit HH:MM; start date is today; the alert time starts at the anchor.
func (s *MedicationService) Create(name, timeStr, grams, days, hours string) (*domain.Medication, error) {
	name = strings.TrimSpace(name)
	timeStr = strings.TrimSpace(timeStr)
	grams = strings.TrimSpace(grams)
	days = strings.TrimSpace(days)
	hours = strings.TrimSpace(hours)

	if name == "" || timeStr == "" || grams == "" || days == "" || hours == "" {
		return nil, ErrEmptyField
	}

	clock, err := NormalizeClock(timeStr)
	if err != nil {
		return nil, ErrBadTimeFormat
	}

	if err := validatePositive(days, hours); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.storage.GetMedicationByNameTime(name, clock)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if existing != nil {
		return nil, &DuplicateError{Existing: existing}
	}

	med := &domain.Medication{
		Name:             name,
		Time:             clock,
		Grams:            grams,
		Days:             days,
		Hours:            hours,
		TotalDoses:       TotalDoses(days, hours),
		TakenDoses:       0,
		Completed:        false,
		StartDate:        time.Now().In(s.timezone).Format("2006-01-02"),
		CurrentAlertTime: clock,
	}

	if _, err := s.storage.InsertMedication(med); err != nil {
		return nil, fmt.Errorf("create medication: %w", err)
	}

	return med, nil
}

// Update edits the dose amount, duration and interval of a medication.
// Total doses are recomputed; taken doses are capped and completion
// re-derived. Name and time are identity and cannot change.
func (s *MedicationService) Update(id int64, grams, days, hours string) (*domain.Medication, error) {
	grams = strings.TrimSpace(grams)
	days = strings.TrimSpace(days)
	hours = strings.TrimSpace(hours)
	if grams == "" || days == "" || hours == "" {
		return nil, ErrEmptyField
	}
	if err := validatePositive(days, hours); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	med, err := s.storage.GetMedication(id)
	if err != nil {
		return nil, fmt.Errorf("get medication: %w", err)
	}
	if med == nil {
		return nil, ErrNotFound
	}

	med.Grams = grams
	med.Days = days
	med.Hours = hours
	med.TotalDoses = TotalDoses(days, hours)
	if med.TakenDoses > med.TotalDoses {
		med.TakenDoses = med.TotalDoses
	}
	med.Completed = med.TakenDoses >= med.TotalDoses

	if err := s.storage.UpdateMedication(med); err != nil {
		return nil, fmt.Errorf("update medication: %w", err)
	}
	return med, nil
}

func (s *MedicationService) Get(id int64) (*domain.Medication, error) {
	return s.storage.GetMedication(id)
}

func (s *MedicationService) List() ([]*domain.Medication, error) {
	return s.storage.ListMedications()
}

func (s *MedicationService) Delete(id int64) error {
	return s.storage.DeleteMedication(id)
}

// EvaluateTick checks every record against the current minute and surfaces
// at most one due reminder. A record is due when the wall clock matches its
// armed alert time, it is not completed, and that exact alert time has not
// been notified before. The notification time is persisted before the record
// is returned, so a repeated tick within the same minute cannot re-fire it;
// later due records stay due and are picked up on following ticks.
//
// Returns nil when nothing fires this tick.
func (s *MedicationService) EvaluateTick(now time.Time) *domain.Medication {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.notified != nil {
		// A reminder is already surfaced and awaiting a response.
		return nil
	}

	meds, err := s.storage.ListMedications()
	if err != nil {
		log.Error().Err(err).Msg("list medications for tick")
		return nil
	}

	clock := now.Format("15:04")
	for _, med := range meds {
		if !dueAt(med, clock) {
			continue
		}

		alert := med.CurrentAlertTime
		prev := med.LastNotificationTime
		med.LastNotificationTime = &alert
		if err := s.storage.UpdateMedication(med); err != nil {
			// Not committed: skip this record, keep evaluating the rest.
			log.Error().Err(err).Int64("id", med.ID).Msg("persist notification time")
			continue
		}

		id := med.ID
		s.notified = &id
		s.notifiedPrev = prev
		return med
	}
	return nil
}

// ReleaseReminder rolls back a surfaced reminder whose delivery failed: the
// pending slot is freed and the record's notification time restored to its
// value before surfacing, so the next tick retries the same slot. A call for
// a record that is not the currently surfaced one is a no-op.
func (s *MedicationService) ReleaseReminder(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.notified == nil || *s.notified != id {
		return nil
	}

	med, err := s.storage.GetMedication(id)
	if err != nil {
		return fmt.Errorf("get medication: %w", err)
	}
	if med == nil {
		s.notified = nil
		s.notifiedPrev = nil
		return nil
	}

	med.LastNotificationTime = s.notifiedPrev
	if err := s.storage.UpdateMedication(med); err != nil {
		// Keep the slot so the rollback can be retried.
		return fmt.Errorf("restore notification time: %w", err)
	}

	s.notified = nil
	s.notifiedPrev = nil
	return nil
}

func dueAt(med *domain.Medication, clock string) bool {
	if med.Completed {
		return false
	}
	alert := med.CurrentAlertTime
	if alert == "" {
		alert = med.Time
	}
	if alert != clock {
		return false
	}
	return med.LastNotificationTime == nil || *med.LastNotificationTime != alert
}

// MarkTaken records the surfaced dose as taken: the taken count grows (capped
// at the total), completion is re-derived, and the alert time resets to the
// original anchor, clearing any snooze offset. A call for a record that is
// not the currently surfaced one is an idempotent no-op (applied=false).
func (s *MedicationService) MarkTaken(id int64) (med *domain.Medication, applied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.notified == nil || *s.notified != id {
		med, err := s.storage.GetMedication(id)
		return med, false, err
	}

	med, err = s.storage.GetMedication(id)
	if err != nil {
		return nil, false, fmt.Errorf("get medication: %w", err)
	}
	if med == nil {
		s.notified = nil
		return nil, false, ErrNotFound
	}

	if med.TakenDoses < med.TotalDoses {
		med.TakenDoses++
	}
	med.Completed = med.TakenDoses >= med.TotalDoses
	med.CurrentAlertTime = med.Time
	// The response consumed this notification; clearing the key lets the
	// next dose cycle fire again at the same clock value.
	med.LastNotificationTime = nil

	if err := s.storage.UpdateMedication(med); err != nil {
		// Keep the pending slot so the response can be retried.
		return nil, false, fmt.Errorf("update medication: %w", err)
	}

	s.notified = nil
	s.notifiedPrev = nil
	return med, true, nil
}

// Snooze defers the surfaced dose by the snooze step, wrapping past midnight.
// The original anchor time never changes, so the delay is always a whole
// number of snooze steps. The new alert time differs from the recorded
// notification time, which re-arms the reminder for the deferred slot.
// Same idempotence rule as MarkTaken.
func (s *MedicationService) Snooze(id int64) (med *domain.Medication, applied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.notified == nil || *s.notified != id {
		med, err := s.storage.GetMedication(id)
		return med, false, err
	}

	med, err = s.storage.GetMedication(id)
	if err != nil {
		return nil, false, fmt.Errorf("get medication: %w", err)
	}
	if med == nil {
		s.notified = nil
		return nil, false, ErrNotFound
	}

	fired := med.CurrentAlertTime
	newAlert, err := AddClockMinutes(fired, int(SnoozeStep.Minutes()))
	if err != nil {
		return nil, false, fmt.Errorf("shift alert time: %w", err)
	}

	med.LastNotificationTime = &fired
	med.CurrentAlertTime = newAlert

	if err := s.storage.UpdateMedication(med); err != nil {
		return nil, false, fmt.Errorf("update medication: %w", err)
	}

	s.notified = nil
	s.notifiedPrev = nil
	return med, true, nil
}

// FormatMedicationList renders medications for the Telegram list view.
func (s *MedicationService) FormatMedicationList(meds []*domain.Medication, now time.Time) string {
	if len(meds) == 0 {
		return "No medications yet. /add to register one."
	}

	var sb strings.Builder
	for _, m := range meds {
		total, expected, taken := DoseProgress(m, now)
		line := fmt.Sprintf("%s #%d <b>%s</b> (%sg) — %d/%d doses",
			m.ProgressEmoji(), m.ID, m.Name, m.Grams, taken, total)
		if m.Completed {
			line += ", completed"
		} else {
			line += fmt.Sprintf(", next %s", NextDoseTime(m))
			if m.IsDelayed() {
				line += " (delayed)"
			}
			if expected > taken {
				line += fmt.Sprintf(" · %d due", expected-taken)
			}
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// FormatProgressReport renders a per-record intake breakdown: doses taken
// against doses expected by now, and how far behind the schedule the intake
// is. Records with unparseable fields render as unknown instead of vanishing.
func (s *MedicationService) FormatProgressReport(meds []*domain.Medication, now time.Time) string {
	if len(meds) == 0 {
		return "No medications yet. /add to register one."
	}

	var sb strings.Builder
	for _, m := range meds {
		total, expected, taken := DoseProgress(m, now)
		sb.WriteString(fmt.Sprintf("%s <b>%s</b> (%sg)\n", m.ProgressEmoji(), m.Name, m.Grams))
		if total == 0 {
			sb.WriteString("   progress unknown\n\n")
			continue
		}
		sb.WriteString(fmt.Sprintf("   %d/%d taken, %d expected by now\n", taken, total, expected))
		if m.Completed {
			sb.WriteString("   🎉 completed\n\n")
			continue
		}
		line := fmt.Sprintf("   next dose at %s", NextDoseTime(m))
		if m.IsDelayed() {
			line += " (delayed)"
		}
		if behind := expected - taken; behind > 0 {
			line += fmt.Sprintf(", %d behind schedule", behind)
		}
		sb.WriteString(line + "\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func validatePositive(days, hours string) error {
	d, err := strconv.Atoi(days)
	if err != nil || d <= 0 {
		return ErrNotPositive
	}
	h, err := strconv.Atoi(hours)
	if err != nil || h <= 0 {
		return ErrNotPositive
	}
	return nil
}
