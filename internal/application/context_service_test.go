package application

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
	"github.com/bnema/schoolday-cli/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type inMemorySnapshotRepo struct {
	mu        sync.Mutex
	snapshots map[string]domain.Snapshot
}

func (r *inMemorySnapshotRepo) Load(_ context.Context, contextID string) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot, ok := r.snapshots[contextID]
	if !ok {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	return snapshot, nil
}

func (r *inMemorySnapshotRepo) Save(_ context.Context, snapshot domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snapshots == nil {
		r.snapshots = map[string]domain.Snapshot{}
	}
	r.snapshots[snapshot.ContextID] = snapshot
	return nil
}

func (r *inMemorySnapshotRepo) Delete(_ context.Context, contextID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.snapshots, contextID)
	return nil
}

type contextFixture struct {
	backend      *testBackend
	appointments *AppointmentService
	homework     *HomeworkService
	grades       *GradeService
	service      *ContextService
}

func newContextFixture(t *testing.T, now time.Time, profiles ports.ProfileRepository, snapshots ports.SnapshotRepository) contextFixture {
	t.Helper()

	backend := newTestBackend(t, now)
	appointments := NewAppointmentService(backend.Backend, backend.loc, time.Hour)
	homework := NewHomeworkService(backend.Backend, backend.loc, time.Hour)

	return contextFixture{
		backend:      backend,
		appointments: appointments,
		homework:     homework,
		grades:       NewGradeService(backend.Backend, time.Hour),
		service:      NewContextService(backend.Engine, profiles, snapshots, appointments, homework, nil),
	}
}

func TestContextServicePersistTrimsAndRestores(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 9, 18, 8, 0, 0, 0, time.UTC)
	repo := &inMemorySnapshotRepo{}
	fixture := newContextFixture(t, now, nil, repo)
	fixture.backend.transport.Handle(http.MethodGet, "/students/42/appointments", func(req ports.Request) (ports.Response, error) {
		return jsonPage(t, []map[string]any{appointmentJSON(req.Query.Get("from"), now, now.Add(time.Hour))}, ""), nil
	})
	fixture.backend.transport.Handle(http.MethodGet, "/students/42/grades", func(ports.Request) (ports.Response, error) {
		return jsonPage(t, []map[string]any{{"id": "g1"}}, ""), nil
	})

	ctx := context.Background()
	for _, key := range []domain.PeriodKey{{Year: 2024, Week: 30}, {Year: 2024, Week: 37}, {Year: 2024, Week: 38}, {Year: 2024, Week: 39}} {
		_, err := fixture.appointments.Refresh(ctx, key)
		require.NoError(t, err)
	}
	_, err := fixture.grades.Refresh(ctx)
	require.NoError(t, err)

	require.NoError(t, fixture.service.Persist(ctx))

	saved := repo.snapshots[testContext.ID()]
	assert.Equal(t, testContext.ID(), saved.ContextID)
	assert.True(t, now.Equal(saved.SavedAt))
	assert.Len(t, saved.Appointments, 3)
	bucket, ok := saved.Calls.Bucket(CallAppointments)
	require.True(t, ok)
	assert.Len(t, bucket.Records, 3, "week 30 record must not outlive its data")
	for _, record := range bucket.Records {
		assert.True(t, record.LastStartedAt.IsZero())
	}

	// A fresh session in another process restores the projection.
	fixture.backend.Engine.SwitchContext(testContext, "Kim")
	restored, err := fixture.service.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)

	assert.Len(t, fixture.appointments.State().Weeks, 3)
	assert.Len(t, fixture.grades.State().Items, 1)

	updated, err := fixture.appointments.Refresh(ctx, domain.PeriodKey{Year: 2024, Week: 38})
	require.NoError(t, err)
	assert.False(t, updated, "restored week is still fresh")

	updated, err = fixture.appointments.Refresh(ctx, domain.PeriodKey{Year: 2024, Week: 30})
	require.NoError(t, err)
	assert.True(t, updated, "trimmed week must be fetched again")
}

func TestContextServiceRestoreWithoutSnapshot(t *testing.T) {
	t.Parallel()

	snapshots := mocks.NewMockSnapshotRepository(t)
	snapshots.EXPECT().Load(mockAnyContext(), testContext.ID()).Return(domain.Snapshot{}, domain.ErrSnapshotNotFound)
	fixture := newContextFixture(t, time.Now(), nil, snapshots)

	restored, err := fixture.service.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestContextServiceRestoreFailure(t *testing.T) {
	t.Parallel()

	loadErr := errors.New("disk on fire")
	snapshots := mocks.NewMockSnapshotRepository(t)
	snapshots.EXPECT().Load(mockAnyContext(), testContext.ID()).Return(domain.Snapshot{}, loadErr)
	fixture := newContextFixture(t, time.Now(), nil, snapshots)

	_, err := fixture.service.Restore(context.Background())
	require.ErrorIs(t, err, loadErr)
}

func TestContextServiceActivateRecordsHistory(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 9, 18, 8, 0, 0, 0, time.UTC)
	profiles := mocks.NewMockProfileRepository(t)
	snapshots := mocks.NewMockSnapshotRepository(t)
	fixture := newContextFixture(t, now, profiles, snapshots)

	other := domain.SessionContext{AuthenticationContextID: "auth-2", AccountID: "acc-2", SubjectID: "7"}
	profile := domain.Profile{ID: "other", Name: "Sam", BaseURL: "https://school.example", Context: other}

	profiles.EXPECT().SaveHistory(mockAnyContext(), mock.MatchedBy(func(history domain.ContextHistory) bool {
		return len(history.Entries) == 2 && history.Entries[0].Context == other && history.Entries[0].Label == "Sam"
	})).Return(nil).Once()
	snapshots.EXPECT().Load(mockAnyContext(), other.ID()).Return(domain.Snapshot{}, domain.ErrSnapshotNotFound).Once()

	session, err := fixture.service.Activate(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, other, session.Context)
	assert.Same(t, session, fixture.backend.Engine.Session())
}

func TestContextServiceActivateLoadsStoredHistoryFirst(t *testing.T) {
	t.Parallel()

	clock := newManualClock(time.Date(2024, 9, 18, 8, 0, 0, 0, time.UTC))
	engine := NewEngine(clock, nil, DefaultDedupWindow)
	profiles := mocks.NewMockProfileRepository(t)
	snapshots := mocks.NewMockSnapshotRepository(t)
	backend := Backend{Engine: engine, Fetcher: NewFetcher(newRouteTransport(), nil, 0, 0)}
	service := NewContextService(engine, profiles, snapshots,
		NewAppointmentService(backend, time.UTC, time.Hour),
		NewHomeworkService(backend, time.UTC, time.Hour),
		nil,
	)

	stored := domain.RememberContext(domain.ContextHistory{}, testContext, "Kim", clock.Now().Add(-time.Hour))
	profiles.EXPECT().History(mockAnyContext()).Return(stored, nil).Once()
	profiles.EXPECT().SaveHistory(mockAnyContext(), mock.MatchedBy(func(history domain.ContextHistory) bool {
		return len(history.Entries) == 1 && history.Entries[0].Switches == 2 && history.Entries[0].Label == "kim"
	})).Return(nil).Once()
	snapshots.EXPECT().Load(mockAnyContext(), testContext.ID()).Return(domain.Snapshot{}, domain.ErrSnapshotNotFound).Once()

	_, err := service.Activate(context.Background(), domain.Profile{ID: "kim", Context: testContext})
	require.NoError(t, err)
}

func TestContextServiceClear(t *testing.T) {
	t.Parallel()

	repo := &inMemorySnapshotRepo{snapshots: map[string]domain.Snapshot{testContext.ID(): {ContextID: testContext.ID()}}}
	fixture := newContextFixture(t, time.Date(2024, 9, 18, 8, 0, 0, 0, time.UTC), nil, repo)
	before := fixture.backend.Engine.Session()

	age, ok, err := fixture.service.Age(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Positive(t, age)

	require.NoError(t, fixture.service.Clear(context.Background()))

	assert.NotSame(t, before, fixture.backend.Engine.Session())
	assert.Equal(t, testContext, fixture.backend.Engine.Session().Context)
	_, ok, err = fixture.service.Age(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
