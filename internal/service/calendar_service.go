package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/medbot/internal/clients/caldav"
	"github.com/tazhate/medbot/internal/domain"
)

// doseEventHorizon bounds how far ahead dose slots are published.
const doseEventHorizon = 7 * 24 * time.Hour

// uidPrefix marks events owned by this service so foreign calendar entries
// are never touched during sync.
const uidPrefix = "medbot-"

// CalendarService publishes the remaining dose slots of active medications
// as calendar events, and renders the same schedule as an ICS feed.
type CalendarService struct {
	medService   *MedicationService
	caldavClient *caldav.Client
	timezone     *time.Location
}

func NewCalendarService(medSvc *MedicationService, client *caldav.Client, tz *time.Location) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	return &CalendarService{
		medService:   medSvc,
		caldavClient: client,
		timezone:     tz,
	}
}

// IsConfigured returns true if CalDAV publishing is available. The ICS feed
// works regardless.
func (s *CalendarService) IsConfigured() bool {
	return s.caldavClient != nil && s.caldavClient.IsConfigured()
}

// SetCalendarPath sets the calendar to publish into.
func (s *CalendarService) SetCalendarPath(path string) {
	if s.caldavClient != nil {
		s.caldavClient.SetCalendarPath(path)
	}
}

// DiscoverCalendars returns the calendars available on the server.
func (s *CalendarService) DiscoverCalendars() ([]caldav.Calendar, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CalDAV not configured")
	}
	return s.caldavClient.DiscoverCalendars()
}

// SyncResult contains sync operation results.
type SyncResult struct {
	Added   int
	Updated int
	Deleted int
	Errors  []string
}

// PublishDoseSchedule pushes upcoming dose slots to the CalDAV calendar.
// Events carry deterministic UIDs, so re-publishing upserts in place; stale
// events of doses already taken (or removed medications) are deleted.
// Only events this service created are ever removed.
func (s *CalendarService) PublishDoseSchedule() (*SyncResult, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CalDAV not configured")
	}

	now := time.Now().In(s.timezone)
	events, err := s.upcomingDoseEvents(now)
	if err != nil {
		return nil, err
	}

	existing, err := s.caldavClient.GetEvents(now.AddDate(0, 0, -1), now.Add(doseEventHorizon))
	if err != nil {
		return nil, fmt.Errorf("get existing events: %w", err)
	}

	existingUIDs := make(map[string]bool)
	for _, e := range existing {
		if strings.HasPrefix(e.UID, uidPrefix) {
			existingUIDs[e.UID] = true
		}
	}

	result := &SyncResult{}

	wanted := make(map[string]bool, len(events))
	for i := range events {
		e := &events[i]
		wanted[e.UID] = true
		if err := s.caldavClient.PutEvent(e); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("put %s: %v", e.UID, err))
			continue
		}
		if existingUIDs[e.UID] {
			result.Updated++
		} else {
			result.Added++
		}
	}

	for uid := range existingUIDs {
		if wanted[uid] {
			continue
		}
		if err := s.caldavClient.DeleteEvent(uid); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", uid, err))
			continue
		}
		result.Deleted++
	}

	return result, nil
}

// BuildICSFeed renders the upcoming dose schedule as an iCalendar document.
func (s *CalendarService) BuildICSFeed(now time.Time) (string, error) {
	events, err := s.upcomingDoseEvents(now)
	if err != nil {
		return "", err
	}
	feed, err := caldav.SerializeCalendar(caldav.EventsToCalendar(events))
	if err != nil {
		return "", fmt.Errorf("serialize feed: %w", err)
	}
	return feed, nil
}

// upcomingDoseEvents expands every active medication into its future dose
// slots within the horizon. Dose n fires at anchor + (n-1)*interval hours,
// where the anchor is today's date at the scheduled time, shifted back a day
// when still in the future (the same origin the progress math uses).
func (s *CalendarService) upcomingDoseEvents(now time.Time) ([]caldav.Event, error) {
	meds, err := s.medService.List()
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}

	var events []caldav.Event
	for _, med := range meds {
		if med.Completed {
			continue
		}
		events = append(events, doseEventsFor(med, now)...)
	}
	return events, nil
}

func doseEventsFor(med *domain.Medication, now time.Time) []caldav.Event {
	interval, err := strconv.Atoi(strings.TrimSpace(med.Hours))
	if err != nil || interval <= 0 {
		return nil
	}
	startHour, startMinute, err := ParseClock(med.Time)
	if err != nil {
		return nil
	}

	anchor := time.Date(now.Year(), now.Month(), now.Day(), startHour, startMinute, 0, 0, now.Location())
	if anchor.After(now) {
		anchor = anchor.AddDate(0, 0, -1)
	}

	limit := now.Add(doseEventHorizon)
	var events []caldav.Event
	for n := med.TakenDoses + 1; n <= med.TotalDoses; n++ {
		at := anchor.Add(time.Duration(n-1) * time.Duration(interval) * time.Hour)
		if at.Before(now) || at.After(limit) {
			continue
		}
		events = append(events, caldav.Event{
			UID:     fmt.Sprintf("%s%d-dose-%d", uidPrefix, med.ID, n),
			Summary: fmt.Sprintf("💊 %s (%sg)", med.Name, med.Grams),
			Description: fmt.Sprintf("Dose %d of %d, every %sh for %s days",
				n, med.TotalDoses, med.Hours, med.Days),
			StartTime: at,
			EndTime:   at.Add(15 * time.Minute),
		})
	}
	return events
}
