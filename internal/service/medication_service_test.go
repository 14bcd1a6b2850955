package service

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tazhate/medbot/internal/storage"
)

func newTestService(t *testing.T) (*MedicationService, *storage.Storage) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "medbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewMedicationService(store, time.UTC), store
}

func at(clock string) time.Time {
	ts, err := time.Parse("15:04", clock)
	if err != nil {
		panic(err)
	}
	return time.Date(2026, 3, 10, ts.Hour(), ts.Minute(), 0, 0, time.UTC)
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService(t)

	med, err := svc.Create("Paracetamol", "8:00", "500", "3", "8")
	require.NoError(t, err)
	assert.NotZero(t, med.ID)
	assert.Equal(t, "Paracetamol", med.Name)
	assert.Equal(t, "08:00", med.Time, "time is normalized to two digits")
	assert.Equal(t, 9, med.TotalDoses)
	assert.Zero(t, med.TakenDoses)
	assert.False(t, med.Completed)
	assert.Equal(t, "08:00", med.CurrentAlertTime)
	assert.Nil(t, med.LastNotificationTime)
	assert.NotEmpty(t, med.StartDate)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create("", "08:00", "500", "3", "8")
	assert.ErrorIs(t, err, ErrEmptyField)

	_, err = svc.Create("Ibuprofen", "  ", "500", "3", "8")
	assert.ErrorIs(t, err, ErrEmptyField)

	for _, bad := range []string{"25:00", "08:60", "08-30", "abc"} {
		_, err = svc.Create("Ibuprofen", bad, "500", "3", "8")
		assert.ErrorIs(t, err, ErrBadTimeFormat, "time %q", bad)
	}

	for _, tc := range [][2]string{{"0", "8"}, {"-1", "8"}, {"3", "0"}, {"3", "-8"}, {"x", "8"}, {"3", "x"}} {
		_, err = svc.Create("Ibuprofen", "08:00", "500", tc[0], tc[1])
		assert.ErrorIs(t, err, ErrNotPositive, "days=%q hours=%q", tc[0], tc[1])
	}
}

func TestCreateDuplicate(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)

	_, err = svc.Create("Paracetamol", "8:00", "1000", "5", "6")
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.Existing.ID)

	meds, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, meds, 1)

	// Same name at a different time is a distinct record.
	second, err := svc.Create("Paracetamol", "20:00", "500", "3", "8")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEvaluateTick(t *testing.T) {
	svc, _ := newTestService(t)

	med, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)

	// Wrong minute: nothing fires.
	assert.Nil(t, svc.EvaluateTick(at("08:01")))

	fired := svc.EvaluateTick(at("08:00"))
	require.NotNil(t, fired)
	assert.Equal(t, med.ID, fired.ID)
	require.NotNil(t, fired.LastNotificationTime)
	assert.Equal(t, "08:00", *fired.LastNotificationTime)

	// The reminder stays pending until answered; repeated ticks stay silent.
	assert.Nil(t, svc.EvaluateTick(at("08:00")))
	assert.Nil(t, svc.EvaluateTick(at("08:00")))
}

func TestEvaluateTickOneAtATime(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)
	_, err = svc.Create("Ibuprofen", "08:00", "400", "2", "6")
	require.NoError(t, err)

	first := svc.EvaluateTick(at("08:00"))
	require.NotNil(t, first)

	// The second due record waits for the pending one to be answered.
	assert.Nil(t, svc.EvaluateTick(at("08:00")))

	_, applied, err := svc.MarkTaken(first.ID)
	require.NoError(t, err)
	require.True(t, applied)

	second := svc.EvaluateTick(at("08:00"))
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestReleaseReminder(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)
	second, err := svc.Create("Ibuprofen", "09:00", "400", "2", "6")
	require.NoError(t, err)

	fired := svc.EvaluateTick(at("08:00"))
	require.NotNil(t, fired)
	require.Equal(t, first.ID, fired.ID)

	// Delivery failed: the slot is freed and the notification time rolled
	// back, so other records are not starved.
	require.NoError(t, svc.ReleaseReminder(first.ID))

	released, err := svc.Get(first.ID)
	require.NoError(t, err)
	assert.Nil(t, released.LastNotificationTime)

	other := svc.EvaluateTick(at("09:00"))
	require.NotNil(t, other)
	assert.Equal(t, second.ID, other.ID)

	_, applied, err := svc.MarkTaken(second.ID)
	require.NoError(t, err)
	require.True(t, applied)

	// The released record retries its own slot on a later tick.
	retry := svc.EvaluateTick(at("08:00"))
	require.NotNil(t, retry)
	assert.Equal(t, first.ID, retry.ID)

	taken, applied, err := svc.MarkTaken(first.ID)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, 1, taken.TakenDoses)
}

func TestReleaseReminderRestoresSnoozedKey(t *testing.T) {
	svc, _ := newTestService(t)

	med, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)

	require.NotNil(t, svc.EvaluateTick(at("08:00")))
	_, applied, err := svc.Snooze(med.ID)
	require.NoError(t, err)
	require.True(t, applied)

	require.NotNil(t, svc.EvaluateTick(at("08:05")))
	require.NoError(t, svc.ReleaseReminder(med.ID))

	// The rollback restores the pre-surfacing key, not a blank one.
	got, err := svc.Get(med.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastNotificationTime)
	assert.Equal(t, "08:00", *got.LastNotificationTime)

	// The deferred slot fires again on the next tick.
	require.NotNil(t, svc.EvaluateTick(at("08:05")))
}

func TestReleaseReminderWithoutReminder(t *testing.T) {
	svc, _ := newTestService(t)

	med, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)

	// No-op when nothing is surfaced, and when another record is.
	require.NoError(t, svc.ReleaseReminder(med.ID))

	fired := svc.EvaluateTick(at("08:00"))
	require.NotNil(t, fired)
	require.NoError(t, svc.ReleaseReminder(med.ID+1))

	got, err := svc.Get(med.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastNotificationTime)
	assert.Equal(t, "08:00", *got.LastNotificationTime)
}

func TestMarkTakenWithoutReminder(t *testing.T) {
	svc, _ := newTestService(t)

	med, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)

	got, applied, err := svc.MarkTaken(med.ID)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Zero(t, got.TakenDoses)
}

func TestSnooze(t *testing.T) {
	svc, _ := newTestService(t)

	med, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)

	require.NotNil(t, svc.EvaluateTick(at("08:00")))

	snoozed, applied, err := svc.Snooze(med.ID)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, "08:05", snoozed.CurrentAlertTime)
	assert.Equal(t, "08:00", snoozed.Time, "the anchor never moves")
	assert.True(t, snoozed.IsDelayed())

	// The old slot is spent; only the deferred one fires.
	assert.Nil(t, svc.EvaluateTick(at("08:00")))
	refired := svc.EvaluateTick(at("08:05"))
	require.NotNil(t, refired)

	// Snoozing again stacks another step.
	again, applied, err := svc.Snooze(med.ID)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, "08:10", again.CurrentAlertTime)

	require.NotNil(t, svc.EvaluateTick(at("08:10")))
	taken, applied, err := svc.MarkTaken(med.ID)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, 1, taken.TakenDoses)
	assert.Equal(t, "08:00", taken.CurrentAlertTime, "taking a dose clears the snooze offset")
	assert.False(t, taken.IsDelayed())
}

func TestSnoozeWrapsPastMidnight(t *testing.T) {
	svc, _ := newTestService(t)

	med, err := svc.Create("NightMed", "23:58", "100", "1", "12")
	require.NoError(t, err)

	require.NotNil(t, svc.EvaluateTick(at("23:58")))

	snoozed, applied, err := svc.Snooze(med.ID)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, "00:03", snoozed.CurrentAlertTime)

	require.NotNil(t, svc.EvaluateTick(at("00:03")))
}

func TestSnoozeWithoutReminder(t *testing.T) {
	svc, _ := newTestService(t)

	med, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)

	got, applied, err := svc.Snooze(med.ID)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "08:00", got.CurrentAlertTime)
}

func TestFullTreatmentCourse(t *testing.T) {
	svc, _ := newTestService(t)

	med, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)
	require.Equal(t, 9, med.TotalDoses)

	for i := 1; i <= 9; i++ {
		fired := svc.EvaluateTick(at("08:00"))
		require.NotNil(t, fired, "dose %d should fire", i)
		assert.Equal(t, i, fired.NextDoseNumber())

		taken, applied, err := svc.MarkTaken(med.ID)
		require.NoError(t, err)
		require.True(t, applied)
		assert.Equal(t, i, taken.TakenDoses)
	}

	final, err := svc.Get(med.ID)
	require.NoError(t, err)
	assert.True(t, final.Completed)

	// A completed treatment never fires again.
	assert.Nil(t, svc.EvaluateTick(at("08:00")))
}

func TestUpdate(t *testing.T) {
	svc, store := newTestService(t)

	med, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)

	updated, err := svc.Update(med.ID, "250", "1", "8")
	require.NoError(t, err)
	assert.Equal(t, "250", updated.Grams)
	assert.Equal(t, 3, updated.TotalDoses)
	assert.False(t, updated.Completed)

	// Shrinking the course below the doses already taken caps and completes.
	updated.TakenDoses = 3
	require.NoError(t, store.UpdateMedication(updated))

	capped, err := svc.Update(med.ID, "250", "1", "24")
	require.NoError(t, err)
	assert.Equal(t, 1, capped.TotalDoses)
	assert.Equal(t, 1, capped.TakenDoses)
	assert.True(t, capped.Completed)

	_, err = svc.Update(999, "250", "1", "8")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(med.ID, "", "1", "8")
	assert.ErrorIs(t, err, ErrEmptyField)
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(t)

	med, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(med.ID))

	got, err := svc.Get(med.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDuplicateErrorMessage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)
	_, err = svc.Create("Paracetamol", "08:00", "500", "3", "8")

	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Contains(t, dup.Error(), "Paracetamol")
	assert.Contains(t, dup.Error(), "08:00")
}

func TestFormatMedicationList(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Contains(t, svc.FormatMedicationList(nil, at("09:00")), "No medications")

	med, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)

	meds, err := svc.List()
	require.NoError(t, err)
	out := svc.FormatMedicationList(meds, at("09:00"))
	assert.Contains(t, out, "Paracetamol")
	assert.Contains(t, out, "0/9")

	require.NotNil(t, svc.EvaluateTick(at("08:00")))
	_, _, err = svc.Snooze(med.ID)
	require.NoError(t, err)

	meds, err = svc.List()
	require.NoError(t, err)
	out = svc.FormatMedicationList(meds, at("09:00"))
	assert.Contains(t, out, "delayed")
}

func TestFormatProgressReport(t *testing.T) {
	svc, store := newTestService(t)

	assert.Contains(t, svc.FormatProgressReport(nil, at("09:00")), "No medications")

	med, err := svc.Create("Paracetamol", "08:00", "500", "3", "8")
	require.NoError(t, err)

	meds, err := svc.List()
	require.NoError(t, err)
	out := svc.FormatProgressReport(meds, at("09:00"))
	assert.Contains(t, out, "Paracetamol")
	assert.Contains(t, out, "0/9 taken, 1 expected")
	assert.Contains(t, out, "1 behind schedule")
	assert.Contains(t, out, "next dose at 08:00")

	require.NotNil(t, svc.EvaluateTick(at("08:00")))
	_, _, err = svc.Snooze(med.ID)
	require.NoError(t, err)

	meds, err = svc.List()
	require.NoError(t, err)
	assert.Contains(t, svc.FormatProgressReport(meds, at("09:00")), "delayed")

	med, err = svc.Get(med.ID)
	require.NoError(t, err)
	med.TakenDoses = 9
	med.Completed = true
	require.NoError(t, store.UpdateMedication(med))

	meds, err = svc.List()
	require.NoError(t, err)
	assert.Contains(t, svc.FormatProgressReport(meds, at("09:00")), "completed")

	// Corrupted fields render as unknown rather than dropping the record.
	med.Hours = "garbage"
	med.Completed = false
	require.NoError(t, store.UpdateMedication(med))
	meds, err = svc.List()
	require.NoError(t, err)
	assert.Contains(t, svc.FormatProgressReport(meds, at("09:00")), "progress unknown")
}
