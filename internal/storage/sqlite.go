package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tazhate/medbot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS medications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			time TEXT NOT NULL,
			grams TEXT NOT NULL,
			days INTEGER NOT NULL,
			hours INTEGER NOT NULL,
			total_doses INTEGER NOT NULL,
			taken_doses INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			start_date TEXT,
			current_alert_time TEXT,
			last_notification_time TEXT
		)`,
		// One logical record per (name, time); duplicate inserts are ignored.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_medications_name_time
			ON medications(name, time)`,
		`CREATE INDEX IF NOT EXISTS idx_medications_completed ON medications(completed)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// InsertMedication inserts a medication and assigns its id. If a record with
// the same (name, time) already exists, the insert is a no-op and the
// existing record's id is returned instead.
func (s *Storage) InsertMedication(m *domain.Medication) (int64, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO medications
			(name, time, grams, days, hours, total_doses, taken_doses, completed,
			 start_date, current_alert_time, last_notification_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.Time, m.Grams, m.Days, m.Hours, m.TotalDoses, m.TakenDoses,
		boolToInt(m.Completed), m.StartDate, m.CurrentAlertTime, nullable(m.LastNotificationTime),
	)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		// Ignored as duplicate, fetch the existing id.
		var id int64
		err := s.db.QueryRow(
			`SELECT id FROM medications WHERE name = ? AND time = ?`,
			m.Name, m.Time,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("lookup existing medication: %w", err)
		}
		m.ID = id
		return id, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	m.ID = id
	return id, nil
}

// UpdateMedication writes all mutable fields of one record. Unknown ids are
// a no-op; name and time are the record's identity and never change here.
func (s *Storage) UpdateMedication(m *domain.Medication) error {
	if m.ID == 0 {
		return nil
	}
	_, err := s.db.Exec(
		`UPDATE medications
		 SET grams = ?, days = ?, hours = ?, total_doses = ?, taken_doses = ?,
		     completed = ?, start_date = ?, current_alert_time = ?, last_notification_time = ?
		 WHERE id = ?`,
		m.Grams, m.Days, m.Hours, m.TotalDoses, m.TakenDoses,
		boolToInt(m.Completed), m.StartDate, m.CurrentAlertTime, nullable(m.LastNotificationTime),
		m.ID,
	)
	return err
}

func (s *Storage) GetMedication(id int64) (*domain.Medication, error) {
	return s.scanOne(s.db.QueryRow(selectMedication+` WHERE id = ?`, id))
}

func (s *Storage) GetMedicationByNameTime(name, timeStr string) (*domain.Medication, error) {
	return s.scanOne(s.db.QueryRow(selectMedication+` WHERE name = ? AND time = ?`, name, timeStr))
}

// ListMedications returns all records, most recently inserted first.
func (s *Storage) ListMedications() ([]*domain.Medication, error) {
	rows, err := s.db.Query(selectMedication + ` ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meds []*domain.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}

func (s *Storage) DeleteMedication(id int64) error {
	_, err := s.db.Exec(`DELETE FROM medications WHERE id = ?`, id)
	return err
}

const selectMedication = `SELECT id, name, time, grams, days, hours, total_doses,
	taken_doses, completed, start_date, current_alert_time, last_notification_time
	FROM medications`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Storage) scanOne(row *sql.Row) (*domain.Medication, error) {
	m, err := scanMedication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func scanMedication(row rowScanner) (*domain.Medication, error) {
	m := &domain.Medication{}
	var completed int
	var startDate, alertTime, lastNotified sql.NullString
	err := row.Scan(
		&m.ID, &m.Name, &m.Time, &m.Grams, &m.Days, &m.Hours, &m.TotalDoses,
		&m.TakenDoses, &completed, &startDate, &alertTime, &lastNotified,
	)
	if err != nil {
		return nil, err
	}
	m.Completed = completed != 0
	m.StartDate = startDate.String
	m.CurrentAlertTime = alertTime.String
	if m.CurrentAlertTime == "" {
		m.CurrentAlertTime = m.Time
	}
	if lastNotified.Valid {
		v := lastNotified.String
		m.LastNotificationTime = &v
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
