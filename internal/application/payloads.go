package application

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
)

// itemID accepts identifiers sent either as JSON strings or numbers.
type itemID string

func (id *itemID) UnmarshalJSON(raw []byte) error {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		*id = itemID(text)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return fmt.Errorf("decode item id %s: %w", raw, err)
	}
	*id = itemID(number.String())

	return nil
}

type appointmentPayload struct {
	ID          itemID    `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Subjects    []string  `json:"subjects"`
	Teachers    []string  `json:"teachers"`
	InfoType    string    `json:"infoType"`
	Cancelled   bool      `json:"cancelled"`
}

func decodeAppointment(raw []byte) (domain.Appointment, error) {
	var payload appointmentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Appointment{}, fmt.Errorf("decode appointment: %w", err)
	}

	return domain.Appointment{
		ID:          string(payload.ID),
		Start:       payload.Start,
		End:         payload.End,
		AllDay:      payload.AllDay,
		Description: payload.Description,
		Location:    payload.Location,
		Subjects:    payload.Subjects,
		Teachers:    payload.Teachers,
		Info:        domain.InfoType(strings.ToLower(payload.InfoType)),
		Cancelled:   payload.Cancelled,
	}, nil
}

type homeworkPayload struct {
	ID          itemID    `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
}

func decodeHomework(raw []byte) (domain.Homework, error) {
	var payload homeworkPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Homework{}, fmt.Errorf("decode homework: %w", err)
	}

	end := payload.End
	if end.IsZero() {
		end = payload.Start
	}

	return domain.Homework{
		ID:          string(payload.ID),
		Start:       payload.Start,
		End:         end,
		Subject:     payload.Subject,
		Description: payload.Description,
		Completed:   payload.Completed,
	}, nil
}

// homeworkCompletion is the PUT body toggling a homework item. The $type
// discriminator names the server-side record.
type homeworkCompletion struct {
	Type      string `json:"$type"`
	Completed bool   `json:"completed"`
}

type gradePayload struct {
	ID          itemID    `json:"id"`
	Subject     string    `json:"subject"`
	Value       string    `json:"value"`
	Weight      float64   `json:"weight"`
	Description string    `json:"description"`
	EnteredAt   time.Time `json:"enteredAt"`
	Counts      *bool     `json:"counts"`
}

func decodeGrade(raw []byte) (domain.Grade, error) {
	var payload gradePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Grade{}, fmt.Errorf("decode grade: %w", err)
	}

	counts := true
	if payload.Counts != nil {
		counts = *payload.Counts
	}

	return domain.Grade{
		ID:          string(payload.ID),
		Subject:     payload.Subject,
		Value:       payload.Value,
		Weight:      payload.Weight,
		Description: payload.Description,
		EnteredAt:   payload.EnteredAt,
		Counts:      counts,
	}, nil
}

type messagePayload struct {
	ID             itemID    `json:"id"`
	Subject        string    `json:"subject"`
	Sender         string    `json:"sender"`
	SentAt         time.Time `json:"sentAt"`
	Read           bool      `json:"read"`
	HasAttachments bool      `json:"hasAttachments"`
}

func decodeMessage(raw []byte) (domain.Message, error) {
	var payload messagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}

	return domain.Message{
		ID:             string(payload.ID),
		Subject:        payload.Subject,
		Sender:         payload.Sender,
		SentAt:         payload.SentAt,
		Read:           payload.Read,
		HasAttachments: payload.HasAttachments,
	}, nil
}

type messageReadFlag struct {
	Type string `json:"$type"`
	Read bool   `json:"read"`
}

func decodeAll[T any](raw []json.RawMessage, decode func([]byte) (T, error)) ([]T, error) {
	items := make([]T, 0, len(raw))
	for _, entry := range raw {
		item, err := decode(entry)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}
