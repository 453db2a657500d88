package domain

import "time"

type InfoType string

const (
	InfoTypeNone     InfoType = ""
	InfoTypeHomework InfoType = "homework"
	InfoTypeTest     InfoType = "test"
	InfoTypeExam     InfoType = "exam"
	InfoTypeQuiz     InfoType = "quiz"
	InfoTypeOral     InfoType = "oral"
)

type Appointment struct {
	ID          string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Description string
	Location    string
	Subjects    []string
	Teachers    []string
	Info        InfoType
	Cancelled   bool
}

var _ WeekItem[Appointment] = Appointment{}

func (a Appointment) ItemID() string {
	return a.ID
}

func (a Appointment) Span() (time.Time, time.Time) {
	return a.Start, a.End
}

func (a Appointment) WithSpan(start, end time.Time) Appointment {
	a.Start = start
	a.End = end
	return a
}

type Homework struct {
	ID          string
	Start       time.Time
	End         time.Time
	Subject     string
	Description string
	Completed   bool
}

var _ WeekItem[Homework] = Homework{}

func (h Homework) ItemID() string {
	return h.ID
}

func (h Homework) Span() (time.Time, time.Time) {
	return h.Start, h.End
}

func (h Homework) WithSpan(start, end time.Time) Homework {
	h.Start = start
	h.End = end
	return h
}
