// Package schema holds the on-disk form of a session snapshot, shared by
// every snapshot backend.
package schema

import (
	"fmt"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
)

const CurrentSnapshotVersion = 1

type SnapshotDocument struct {
	Version      int               `toml:"version" json:"version"`
	ContextID    string            `toml:"context_id" json:"context_id"`
	SavedAt      string            `toml:"saved_at" json:"saved_at"`
	Calls        []CallBucket      `toml:"calls" json:"calls"`
	Appointments []AppointmentWeek `toml:"appointments" json:"appointments"`
	Homework     []HomeworkWeek    `toml:"homework" json:"homework"`
	Grades       GradeList         `toml:"grades" json:"grades"`
	Messages     []MessageFolder   `toml:"messages" json:"messages"`
}

func (d *SnapshotDocument) ApplyDefaults() {
	if d.Version == 0 {
		d.Version = CurrentSnapshotVersion
	}
}

func (d SnapshotDocument) ValidateVersion() error {
	if d.Version > CurrentSnapshotVersion {
		return fmt.Errorf("unsupported snapshot schema version %d (current %d)", d.Version, CurrentSnapshotVersion)
	}

	return nil
}

type CallBucket struct {
	Name         string       `toml:"name" json:"name"`
	LastSyncedAt string       `toml:"last_synced_at" json:"last_synced_at"`
	Records      []CallRecord `toml:"records" json:"records"`
}

// CallRecord has no start time: persisted calls never hold a dedup window.
type CallRecord struct {
	Fingerprint  string `toml:"fingerprint" json:"fingerprint"`
	LastSyncedAt string `toml:"last_synced_at" json:"last_synced_at"`
}

type AppointmentWeek struct {
	Period string           `toml:"period" json:"period"`
	Days   []AppointmentDay `toml:"days" json:"days"`
}

type AppointmentDay struct {
	Date  string        `toml:"date" json:"date"`
	Items []Appointment `toml:"items" json:"items"`
}

type Appointment struct {
	ID          string   `toml:"id" json:"id"`
	Start       string   `toml:"start" json:"start"`
	End         string   `toml:"end" json:"end"`
	AllDay      bool     `toml:"all_day,omitempty" json:"all_day,omitempty"`
	Description string   `toml:"description" json:"description"`
	Location    string   `toml:"location,omitempty" json:"location,omitempty"`
	Subjects    []string `toml:"subjects,omitempty" json:"subjects,omitempty"`
	Teachers    []string `toml:"teachers,omitempty" json:"teachers,omitempty"`
	Info        string   `toml:"info,omitempty" json:"info,omitempty"`
	Cancelled   bool     `toml:"cancelled,omitempty" json:"cancelled,omitempty"`
}

type HomeworkWeek struct {
	Period string        `toml:"period" json:"period"`
	Days   []HomeworkDay `toml:"days" json:"days"`
}

type HomeworkDay struct {
	Date  string     `toml:"date" json:"date"`
	Items []Homework `toml:"items" json:"items"`
}

type Homework struct {
	ID          string `toml:"id" json:"id"`
	Start       string `toml:"start" json:"start"`
	End         string `toml:"end" json:"end"`
	Subject     string `toml:"subject" json:"subject"`
	Description string `toml:"description" json:"description"`
	Completed   bool   `toml:"completed,omitempty" json:"completed,omitempty"`
}

type GradeList struct {
	FetchedAt string  `toml:"fetched_at" json:"fetched_at"`
	Items     []Grade `toml:"items" json:"items"`
}

type Grade struct {
	ID          string  `toml:"id" json:"id"`
	Subject     string  `toml:"subject" json:"subject"`
	Value       string  `toml:"value" json:"value"`
	Weight      float64 `toml:"weight" json:"weight"`
	Description string  `toml:"description" json:"description"`
	EnteredAt   string  `toml:"entered_at" json:"entered_at"`
	Counts      bool    `toml:"counts" json:"counts"`
}

type MessageFolder struct {
	Name  string    `toml:"name" json:"name"`
	Items []Message `toml:"items" json:"items"`
}

type Message struct {
	ID             string `toml:"id" json:"id"`
	Subject        string `toml:"subject" json:"subject"`
	Sender         string `toml:"sender" json:"sender"`
	SentAt         string `toml:"sent_at" json:"sent_at"`
	Read           bool   `toml:"read" json:"read"`
	HasAttachments bool   `toml:"has_attachments,omitempty" json:"has_attachments,omitempty"`
}

func FromSnapshot(snapshot domain.Snapshot) SnapshotDocument {
	doc := SnapshotDocument{
		Version:   CurrentSnapshotVersion,
		ContextID: snapshot.ContextID,
		SavedAt:   FormatTime(snapshot.SavedAt),
		Grades: GradeList{
			FetchedAt: FormatTime(snapshot.Grades.FetchedAt),
			Items:     make([]Grade, 0, len(snapshot.Grades.Items)),
		},
	}

	for _, name := range snapshot.Calls.Names() {
		bucket, _ := snapshot.Calls.Bucket(name)
		encoded := CallBucket{Name: name, LastSyncedAt: FormatTime(bucket.LastSyncedAt)}
		for _, record := range bucket.Records {
			if record.LastSyncedAt.IsZero() {
				continue
			}
			encoded.Records = append(encoded.Records, CallRecord{
				Fingerprint:  record.Signature.Fingerprint,
				LastSyncedAt: FormatTime(record.LastSyncedAt),
			})
		}
		doc.Calls = append(doc.Calls, encoded)
	}

	for _, week := range snapshot.Appointments {
		encoded := AppointmentWeek{Period: week.Period.String()}
		for _, day := range week.Days {
			items := make([]Appointment, 0, len(day.Items))
			for _, item := range day.Items {
				items = append(items, toAppointment(item))
			}
			encoded.Days = append(encoded.Days, AppointmentDay{Date: FormatTime(day.Date), Items: items})
		}
		doc.Appointments = append(doc.Appointments, encoded)
	}

	for _, week := range snapshot.Homework {
		encoded := HomeworkWeek{Period: week.Period.String()}
		for _, day := range week.Days {
			items := make([]Homework, 0, len(day.Items))
			for _, item := range day.Items {
				items = append(items, toHomework(item))
			}
			encoded.Days = append(encoded.Days, HomeworkDay{Date: FormatTime(day.Date), Items: items})
		}
		doc.Homework = append(doc.Homework, encoded)
	}

	for _, grade := range snapshot.Grades.Items {
		doc.Grades.Items = append(doc.Grades.Items, Grade{
			ID:          grade.ID,
			Subject:     grade.Subject,
			Value:       grade.Value,
			Weight:      grade.Weight,
			Description: grade.Description,
			EnteredAt:   FormatTime(grade.EnteredAt),
			Counts:      grade.Counts,
		})
	}

	for _, name := range snapshot.Messages.FolderNames() {
		folder := MessageFolder{Name: name, Items: []Message{}}
		for _, message := range snapshot.Messages.Folder(name) {
			folder.Items = append(folder.Items, Message{
				ID:             message.ID,
				Subject:        message.Subject,
				Sender:         message.Sender,
				SentAt:         FormatTime(message.SentAt),
				Read:           message.Read,
				HasAttachments: message.HasAttachments,
			})
		}
		doc.Messages = append(doc.Messages, folder)
	}

	return doc
}

// ToSnapshot decodes the document. Weeks must carry exactly seven days.
func (d SnapshotDocument) ToSnapshot() (domain.Snapshot, error) {
	if err := d.ValidateVersion(); err != nil {
		return domain.Snapshot{}, err
	}

	snapshot := domain.Snapshot{
		ContextID: d.ContextID,
		SavedAt:   ParseTime(d.SavedAt),
		Calls:     domain.NewCallState(),
		Grades:    domain.GradeState{FetchedAt: ParseTime(d.Grades.FetchedAt)},
		Messages:  domain.NewMessageState(),
	}

	for _, bucket := range d.Calls {
		decoded := domain.CallTypeBucket{Name: bucket.Name, LastSyncedAt: ParseTime(bucket.LastSyncedAt)}
		for _, record := range bucket.Records {
			decoded.Records = append(decoded.Records, domain.CallRecord{
				Signature:    domain.CallSignature{Name: bucket.Name, Fingerprint: record.Fingerprint},
				LastSyncedAt: ParseTime(record.LastSyncedAt),
			})
		}
		snapshot.Calls.Buckets[bucket.Name] = decoded
	}

	for _, week := range d.Appointments {
		decoded, err := decodeWeek(week.Period, week.Days, func(day AppointmentDay) (string, []domain.Appointment) {
			var items []domain.Appointment
			for _, item := range day.Items {
				items = append(items, fromAppointment(item))
			}
			return day.Date, items
		})
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode appointments: %w", err)
		}
		snapshot.Appointments = append(snapshot.Appointments, decoded)
	}

	for _, week := range d.Homework {
		decoded, err := decodeWeek(week.Period, week.Days, func(day HomeworkDay) (string, []domain.Homework) {
			var items []domain.Homework
			for _, item := range day.Items {
				items = append(items, fromHomework(item))
			}
			return day.Date, items
		})
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode homework: %w", err)
		}
		snapshot.Homework = append(snapshot.Homework, decoded)
	}

	for _, grade := range d.Grades.Items {
		snapshot.Grades.Items = append(snapshot.Grades.Items, domain.Grade{
			ID:          grade.ID,
			Subject:     grade.Subject,
			Value:       grade.Value,
			Weight:      grade.Weight,
			Description: grade.Description,
			EnteredAt:   ParseTime(grade.EnteredAt),
			Counts:      grade.Counts,
		})
	}

	for _, folder := range d.Messages {
		var messages []domain.Message
		for _, message := range folder.Items {
			messages = append(messages, domain.Message{
				ID:             message.ID,
				Folder:         folder.Name,
				Subject:        message.Subject,
				Sender:         message.Sender,
				SentAt:         ParseTime(message.SentAt),
				Read:           message.Read,
				HasAttachments: message.HasAttachments,
			})
		}
		snapshot.Messages.Folders[folder.Name] = messages
	}

	return snapshot, nil
}

func decodeWeek[D any, T any](period string, days []D, decode func(D) (string, []T)) (domain.WeekBucket[T], error) {
	key, err := domain.ParsePeriodKey(period)
	if err != nil {
		return domain.WeekBucket[T]{}, err
	}
	if len(days) != 7 {
		return domain.WeekBucket[T]{}, fmt.Errorf("week %s has %d days, want 7", key, len(days))
	}

	week := domain.WeekBucket[T]{Period: key}
	for i, day := range days {
		date, items := decode(day)
		week.Days[i] = domain.Day[T]{Date: ParseTime(date), Items: items}
	}

	return week, nil
}

func toAppointment(item domain.Appointment) Appointment {
	return Appointment{
		ID:          item.ID,
		Start:       FormatTime(item.Start),
		End:         FormatTime(item.End),
		AllDay:      item.AllDay,
		Description: item.Description,
		Location:    item.Location,
		Subjects:    item.Subjects,
		Teachers:    item.Teachers,
		Info:        string(item.Info),
		Cancelled:   item.Cancelled,
	}
}

func fromAppointment(item Appointment) domain.Appointment {
	return domain.Appointment{
		ID:          item.ID,
		Start:       ParseTime(item.Start),
		End:         ParseTime(item.End),
		AllDay:      item.AllDay,
		Description: item.Description,
		Location:    item.Location,
		Subjects:    item.Subjects,
		Teachers:    item.Teachers,
		Info:        domain.InfoType(item.Info),
		Cancelled:   item.Cancelled,
	}
}

func toHomework(item domain.Homework) Homework {
	return Homework{
		ID:          item.ID,
		Start:       FormatTime(item.Start),
		End:         FormatTime(item.End),
		Subject:     item.Subject,
		Description: item.Description,
		Completed:   item.Completed,
	}
}

func fromHomework(item Homework) domain.Homework {
	return domain.Homework{
		ID:          item.ID,
		Start:       ParseTime(item.Start),
		End:         ParseTime(item.End),
		Subject:     item.Subject,
		Description: item.Description,
		Completed:   item.Completed,
	}
}

func ParseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func FormatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339Nano)
}
