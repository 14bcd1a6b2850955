package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tazhate/medbot/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testMedication(name, clock string) *domain.Medication {
	return &domain.Medication{
		Name:             name,
		Time:             clock,
		Grams:            "500",
		Days:             "3",
		Hours:            "8",
		TotalDoses:       9,
		StartDate:        "2026-03-10",
		CurrentAlertTime: clock,
	}
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStorage(t)

	med := testMedication("Paracetamol", "08:00")
	id, err := s.InsertMedication(med)
	require.NoError(t, err)
	assert.Equal(t, id, med.ID)

	got, err := s.GetMedication(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Paracetamol", got.Name)
	assert.Equal(t, "08:00", got.Time)
	assert.Equal(t, "3", got.Days)
	assert.Equal(t, "8", got.Hours)
	assert.Equal(t, 9, got.TotalDoses)
	assert.False(t, got.Completed)
	assert.Nil(t, got.LastNotificationTime)
}

func TestInsertDuplicateReturnsExistingID(t *testing.T) {
	s := newTestStorage(t)

	first := testMedication("Paracetamol", "08:00")
	firstID, err := s.InsertMedication(first)
	require.NoError(t, err)

	dup := testMedication("Paracetamol", "08:00")
	dup.Grams = "1000"
	dupID, err := s.InsertMedication(dup)
	require.NoError(t, err)
	assert.Equal(t, firstID, dupID)

	// The original record is untouched.
	got, err := s.GetMedication(firstID)
	require.NoError(t, err)
	assert.Equal(t, "500", got.Grams)

	meds, err := s.ListMedications()
	require.NoError(t, err)
	assert.Len(t, meds, 1)
}

func TestListOrder(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.InsertMedication(testMedication("Paracetamol", "08:00"))
	require.NoError(t, err)
	_, err = s.InsertMedication(testMedication("Ibuprofen", "12:00"))
	require.NoError(t, err)

	meds, err := s.ListMedications()
	require.NoError(t, err)
	require.Len(t, meds, 2)
	assert.Equal(t, "Ibuprofen", meds[0].Name, "newest first")
	assert.Equal(t, "Paracetamol", meds[1].Name)
}

func TestUpdate(t *testing.T) {
	s := newTestStorage(t)

	med := testMedication("Paracetamol", "08:00")
	_, err := s.InsertMedication(med)
	require.NoError(t, err)

	notified := "08:05"
	med.TakenDoses = 3
	med.Completed = false
	med.CurrentAlertTime = "08:05"
	med.LastNotificationTime = &notified
	require.NoError(t, s.UpdateMedication(med))

	got, err := s.GetMedication(med.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TakenDoses)
	assert.Equal(t, "08:05", got.CurrentAlertTime)
	require.NotNil(t, got.LastNotificationTime)
	assert.Equal(t, "08:05", *got.LastNotificationTime)

	// Clearing the notification time persists as NULL.
	med.LastNotificationTime = nil
	require.NoError(t, s.UpdateMedication(med))
	got, err = s.GetMedication(med.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastNotificationTime)
}

func TestUpdateUnsavedRecordIsNoop(t *testing.T) {
	s := newTestStorage(t)
	assert.NoError(t, s.UpdateMedication(testMedication("Ghost", "08:00")))

	meds, err := s.ListMedications()
	require.NoError(t, err)
	assert.Empty(t, meds)
}

func TestGetMissing(t *testing.T) {
	s := newTestStorage(t)

	got, err := s.GetMedication(42)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.GetMedicationByNameTime("Nothing", "00:00")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDelete(t *testing.T) {
	s := newTestStorage(t)

	med := testMedication("Paracetamol", "08:00")
	id, err := s.InsertMedication(med)
	require.NoError(t, err)

	require.NoError(t, s.DeleteMedication(id))

	got, err := s.GetMedication(id)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting twice is harmless.
	assert.NoError(t, s.DeleteMedication(id))
}

func TestAlertTimeFallsBackToAnchor(t *testing.T) {
	s := newTestStorage(t)

	med := testMedication("Paracetamol", "08:00")
	med.CurrentAlertTime = ""
	id, err := s.InsertMedication(med)
	require.NoError(t, err)

	got, err := s.GetMedication(id)
	require.NoError(t, err)
	assert.Equal(t, "08:00", got.CurrentAlertTime)
}
