package domain

import "time"

type Grade struct {
	ID          string
	Subject     string
	Value       string
	Weight      float64
	Description string
	EnteredAt   time.Time
	Counts      bool
}

type GradeState struct {
	Items     []Grade
	FetchedAt time.Time
}

// ReplaceGrades swaps the grade list for a freshly fetched one. Server order
// is kept; a repeated identifier keeps its first position.
func ReplaceGrades(s GradeState, grades []Grade, now time.Time) GradeState {
	items := make([]Grade, 0, len(grades))
	seen := make(map[string]struct{}, len(grades))
	for _, grade := range grades {
		if grade.ID == "" {
			continue
		}
		if _, ok := seen[grade.ID]; ok {
			continue
		}
		seen[grade.ID] = struct{}{}
		items = append(items, grade)
	}

	return GradeState{Items: items, FetchedAt: now}
}

func (s GradeState) ByID(id string) (Grade, bool) {
	for _, grade := range s.Items {
		if grade.ID == id {
			return grade, true
		}
	}
	return Grade{}, false
}
