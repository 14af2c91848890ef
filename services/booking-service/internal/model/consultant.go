package model

import "time"

// Consultant is a bookable person. PublicID is the opaque identifier the
// public API exposes; the numeric ID never leaves the database layer.
type Consultant struct {
	ID          int64
	PublicID    string
	DisplayName string
	Email       string
	Active      bool
	CreatedAt   time.Time
}

// AvailabilityWindow is one weekly recurring window. Weekday follows
// time.Weekday numbering (0 = Sunday). Times are stored as "HH:MM:SS";
// EndTime <= StartTime denotes an overnight window.
type AvailabilityWindow struct {
	ConsultantID int64
	Weekday      int
	StartTime    string
	EndTime      string
}
