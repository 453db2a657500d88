package schema

import (
	"testing"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot(t *testing.T) domain.Snapshot {
	t.Helper()

	now := time.Date(2024, 9, 11, 10, 0, 0, 0, time.UTC)
	key := domain.PeriodKeyOf(now)

	appointments := domain.NewWeekReducer[domain.Appointment](time.UTC)
	homework := domain.NewWeekReducer[domain.Homework](time.UTC)

	sig := domain.CallSignature{Name: "appointments", Fingerprint: `["/appointments",{"week":"2024~37"}]`}
	calls := domain.RecordCallSuccess(domain.NewCallState(), sig, 3*time.Minute, now).WithoutStarts()

	messages := domain.ReplaceFolder(domain.NewMessageState(), "inbox", []domain.Message{
		{ID: "m-1", Subject: "Trip", Sender: "Office", SentAt: now.Add(-time.Hour), HasAttachments: true},
	})

	return domain.Snapshot{
		ContextID: "auth-1/acc-1/42",
		SavedAt:   now,
		Calls:     calls,
		Appointments: []domain.WeekBucket[domain.Appointment]{
			appointments.BuildWeek(key, []domain.Appointment{{
				ID:          "a-1",
				Start:       now,
				End:         now.Add(50 * time.Minute),
				Description: "Maths",
				Subjects:    []string{"wi"},
				Teachers:    []string{"JDV"},
				Info:        domain.InfoTypeTest,
			}}),
		},
		Homework: []domain.WeekBucket[domain.Homework]{
			homework.BuildWeek(key, []domain.Homework{{
				ID:          "h-1",
				Start:       now.Add(-30 * time.Hour),
				End:         now,
				Subject:     "en",
				Description: "Read chapter 4",
			}}),
		},
		Grades: domain.ReplaceGrades(domain.GradeState{}, []domain.Grade{
			{ID: "g-1", Subject: "wi", Value: "7,5", Weight: 2, EnteredAt: now, Counts: true},
		}, now),
		Messages: messages,
	}
}

func TestSnapshotDocumentRoundTrip(t *testing.T) {
	t.Parallel()

	snapshot := sampleSnapshot(t)

	doc := FromSnapshot(snapshot)
	assert.Equal(t, CurrentSnapshotVersion, doc.Version)
	require.Len(t, doc.Appointments, 1)
	assert.Equal(t, "2024~37", doc.Appointments[0].Period)
	require.Len(t, doc.Homework[0].Days, 7)

	decoded, err := doc.ToSnapshot()
	require.NoError(t, err)
	assert.Equal(t, snapshot, decoded)
}

func TestFromSnapshotSkipsRecordsThatNeverSynced(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 9, 11, 10, 0, 0, 0, time.UTC)
	sig := domain.CallSignature{Name: "grades", Fingerprint: "[]"}
	calls := domain.RecordCallStart(domain.NewCallState(), sig, now)

	doc := FromSnapshot(domain.Snapshot{ContextID: "auth-1//", SavedAt: now, Calls: calls})

	require.Len(t, doc.Calls, 1)
	assert.Equal(t, "grades", doc.Calls[0].Name)
	assert.Empty(t, doc.Calls[0].Records)
}

func TestToSnapshotErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     SnapshotDocument
		wantErr string
	}{
		{
			name:    "future version",
			doc:     SnapshotDocument{Version: CurrentSnapshotVersion + 1},
			wantErr: "unsupported snapshot schema version",
		},
		{
			name: "short week",
			doc: SnapshotDocument{
				Version:      CurrentSnapshotVersion,
				Appointments: []AppointmentWeek{{Period: "2024~37", Days: make([]AppointmentDay, 5)}},
			},
			wantErr: "has 5 days",
		},
		{
			name: "bad period",
			doc: SnapshotDocument{
				Version:  CurrentSnapshotVersion,
				Homework: []HomeworkWeek{{Period: "2024-37", Days: make([]HomeworkDay, 7)}},
			},
			wantErr: "invalid period key",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.doc.ToSnapshot()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestTimeFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", FormatTime(time.Time{}))
	assert.True(t, ParseTime("").IsZero())
	assert.True(t, ParseTime("yesterday").IsZero())

	value := time.Date(2024, 9, 11, 10, 0, 0, 123, time.UTC)
	assert.Equal(t, value, ParseTime(FormatTime(value)))
}
