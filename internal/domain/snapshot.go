package domain

import "time"

// Snapshot is the trimmed, persisted projection of one context's state.
// Weekly domains keep the weeks around SavedAt only.
type Snapshot struct {
	ContextID    string
	SavedAt      time.Time
	Calls        CallState
	Appointments []WeekBucket[Appointment]
	Homework     []WeekBucket[Homework]
	Grades       GradeState
	Messages     MessageState
}
