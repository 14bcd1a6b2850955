package caldav

import "time"

// Calendar is one calendar discovered on the CalDAV server.
type Calendar struct {
	ID          string // calendar path/URL
	DisplayName string
	URL         string
}

// Event is a dose-slot calendar event.
type Event struct {
	UID         string
	Summary     string
	Description string
	StartTime   time.Time
	EndTime     time.Time
}
