package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/medbot/internal/domain"
)

// Clock arithmetic and dose math. Everything here is pure: progress and
// next-dose values are recomputed from a record snapshot on demand and never
// stored, so displayed state cannot drift from persisted state.

// ParseClock parses a "HH:MM" time of day. A single-digit hour is accepted.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", s)
	}
	return hour, minute, nil
}

// NormalizeClock canonicalizes a valid time of day to two-digit "HH:MM" so
// stored alert times always compare equal to now.Format("15:04").
func NormalizeClock(s string) (string, error) {
	h, m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// AddClockMinutes shifts a time of day forward, wrapping past midnight.
func AddClockMinutes(clock string, minutes int) (string, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	total := (h*60 + m + minutes) % (24 * 60)
	if total < 0 {
		total += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60), nil
}

// TotalDoses computes ceil(days*24/hours). Zero is the sentinel for invalid
// input: non-numeric, zero or negative values never propagate an error.
func TotalDoses(days, hours string) int {
	d, err := strconv.Atoi(strings.TrimSpace(days))
	if err != nil {
		return 0
	}
	h, err := strconv.Atoi(strings.TrimSpace(hours))
	if err != nil {
		return 0
	}
	if d <= 0 || h <= 0 {
		return 0
	}
	return (d*24 + h - 1) / h
}

// DoseProgress returns (total, expected, taken) doses for a record at the
// given instant.
//
// The anchor is today's date at the record's scheduled time; if that lies in
// the future the regimen is treated as having started yesterday, since dosing
// runs continuously across midnight. The anchor dose itself counts as dose #1
// already due, hence the +1. Expected never exceeds total.
//
// Malformed fields (corrupted stored data) yield (0, 0, 0): this feeds
// display logic that must always render something.
func DoseProgress(med *domain.Medication, now time.Time) (total, expected, taken int) {
	h, err := strconv.Atoi(strings.TrimSpace(med.Hours))
	if err != nil || h <= 0 {
		return 0, 0, 0
	}
	total = TotalDoses(med.Days, med.Hours)
	if total == 0 {
		return 0, 0, 0
	}

	startHour, startMinute, err := ParseClock(med.Time)
	if err != nil {
		return 0, 0, 0
	}

	anchor := time.Date(now.Year(), now.Month(), now.Day(), startHour, startMinute, 0, 0, now.Location())
	if anchor.After(now) {
		anchor = anchor.AddDate(0, 0, -1)
	}

	elapsedHours := now.Sub(anchor).Hours()
	expected = int(elapsedHours/float64(h)) + 1
	if expected > total {
		expected = total
	}
	if expected < 0 {
		expected = 0
	}
	return total, expected, med.TakenDoses
}

// NextDoseTime returns the time of day of the next regular dose, derived from
// the anchor and the doses taken so far. While a dose is snoozed and untaken
// the armed alert time is shown instead. Falls back to the anchor time if the
// record's fields do not parse.
func NextDoseTime(med *domain.Medication) string {
	if med.IsDelayed() {
		return med.CurrentAlertTime
	}
	startHour, startMinute, err := ParseClock(med.Time)
	if err != nil {
		return med.Time
	}
	interval, err := strconv.Atoi(strings.TrimSpace(med.Hours))
	if err != nil || interval <= 0 {
		return med.Time
	}
	nextHour := (startHour + med.TakenDoses*interval) % 24
	return fmt.Sprintf("%02d:%02d", nextHour, startMinute)
}
