package domain

// ProgressLevel classifies a medication's intake progress for display.
type ProgressLevel string

const (
	ProgressPending   ProgressLevel = "pending"   // half or less of the doses taken
	ProgressActive    ProgressLevel = "active"    // more than half taken
	ProgressCompleted ProgressLevel = "completed" // all doses taken
)

// Medication is one treatment entry: a medication taken every Hours hours
// for Days days, anchored at Time ("HH:MM"). The pair (Name, Time) is unique.
//
// Grams, Days and Hours are stored as entered. They are validated numeric on
// create, but the dose calculator re-parses them and treats corrupted values
// as "unknown progress" rather than failing.
type Medication struct {
	ID         int64
	Name       string
	Time       string // original daily anchor, "HH:MM"
	Grams      string
	Days       string
	Hours      string
	TotalDoses int
	TakenDoses int
	Completed  bool
	StartDate  string // "YYYY-MM-DD"

	// CurrentAlertTime is the time-of-day armed to fire the next reminder.
	// Equals Time unless the dose has been snoozed.
	CurrentAlertTime string

	// LastNotificationTime is the alert time of the last reminder actually
	// surfaced. Nil until the first reminder fires. Comparing it against
	// CurrentAlertTime suppresses duplicate firing within one minute slot.
	LastNotificationTime *string
}

// IsDelayed reports whether the next reminder has been pushed past the
// original anchor by snoozing.
func (m *Medication) IsDelayed() bool {
	return m.CurrentAlertTime != "" && m.CurrentAlertTime != m.Time
}

// NextDoseNumber is the 1-based number of the dose about to be taken.
func (m *Medication) NextDoseNumber() int {
	return m.TakenDoses + 1
}

// ProgressRatio returns taken/total in [0,1], 0 when totals are unknown.
func (m *Medication) ProgressRatio() float64 {
	if m.TotalDoses <= 0 {
		return 0
	}
	r := float64(m.TakenDoses) / float64(m.TotalDoses)
	if r > 1 {
		return 1
	}
	return r
}

// Progress classifies the intake progress into the three display levels.
func (m *Medication) Progress() ProgressLevel {
	switch r := m.ProgressRatio(); {
	case r >= 1.0:
		return ProgressCompleted
	case r > 0.5:
		return ProgressActive
	default:
		return ProgressPending
	}
}

func (m *Medication) ProgressEmoji() string {
	switch m.Progress() {
	case ProgressCompleted:
		return "🟢"
	case ProgressActive:
		return "🔵"
	default:
		return "🟠"
	}
}
