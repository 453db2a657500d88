package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "t0k3n"

func TestVersionPrintsVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", stdout)
}

func TestWeekWithoutProfileFails(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "week")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoActiveProfile)
	assert.Contains(t, err.Error(), "sd profile add")
}

func TestAuthSetRequiresTokenFlag(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	addProfile(t, home, backend.URL, "home")

	_, _, err := executeCLI(t, home, "auth", "set")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"token\" not set")
}

func TestProfileAddRequiresBaseURL(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "profile", "add", "--id", "home", "--auth-context", "auth-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "\"base-url\"")
}

func TestProfileAddListAndUse(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	addProfile(t, home, backend.URL, "home")

	_, _, err := executeCLI(t, home,
		"profile", "add",
		"--id", "sibling",
		"--name", "Sibling",
		"--base-url", backend.URL,
		"--auth-context", "auth-2",
		"--subject", "43",
	)
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "profile", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "* home")
	assert.Contains(t, stdout, "  sibling")

	stdout, _, err = executeCLI(t, home, "profile", "use", "sibling")
	require.NoError(t, err)
	assert.Contains(t, stdout, "switched to Sibling")

	stdout, _, err = executeCLI(t, home, "profile", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "* sibling")

	stdout, _, err = executeCLI(t, home, "profile", "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Sibling")
	assert.Contains(t, stdout, "auth-2//43")
}

func TestProfileUseUnknownProfileFails(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	addProfile(t, home, backend.URL, "home")

	_, _, err := executeCLI(t, home, "profile", "use", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestWeekFetchesOnceAcrossInvocations(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	stdout, _, err := executeCLI(t, home, "week")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Mathematics")
	assert.Equal(t, 1, backend.hits("GET /students/42/appointments"))

	_, _, err = executeCLI(t, home, "week")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.hits("GET /students/42/appointments"))

	_, _, err = executeCLI(t, home, "--force", "week")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.hits("GET /students/42/appointments"))
}

func TestWeekRejectsInvalidPeriod(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	_, _, err := executeCLI(t, home, "week", "--week", "2024-37")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid period key")
	assert.Zero(t, backend.hits("GET /students/42/appointments"))
}

func TestWeekJSONOutput(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	stdout, _, err := executeCLI(t, home, "week", "--week", "2024~37", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"ID\": \"a-1\"")
	assert.Equal(t, "2024-09-09", backend.lastQuery("GET /students/42/appointments").Get("from"))
	assert.Equal(t, "2024-09-15", backend.lastQuery("GET /students/42/appointments").Get("to"))
}

func TestGradesJSONOutput(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	stdout, _, err := executeCLI(t, home, "grades", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"Value\": \"8.5\"")
}

func TestOfflineServesCachedGrades(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	_, _, err := executeCLI(t, home, "grades")
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, "calls", "invalidate", "grades")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "--offline", "grades")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[offline]")
	assert.Contains(t, stdout, "8.5")
	assert.Equal(t, 1, backend.hits("GET /students/42/grades"))
}

func TestCallsInvalidateForcesRefetch(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	_, _, err := executeCLI(t, home, "grades")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "calls")
	require.NoError(t, err)
	assert.Contains(t, stdout, "grades")

	stdout, _, err = executeCLI(t, home, "calls", "invalidate", "grades")
	require.NoError(t, err)
	assert.Contains(t, stdout, "invalidated grades")

	_, _, err = executeCLI(t, home, "grades")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.hits("GET /students/42/grades"))
}

func TestCallsInvalidateRejectsUnknownName(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	_, _, err := executeCLI(t, home, "calls", "invalidate", "weather")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown call type \"weather\"")

	_, _, err = executeCLI(t, home, "calls", "invalidate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")
}

func TestCallsAgeAndClear(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	stdout, _, err := executeCLI(t, home, "calls", "age")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no snapshot saved")

	_, _, err = executeCLI(t, home, "grades")
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, home, "calls", "age")
	require.NoError(t, err)
	assert.Contains(t, stdout, "snapshot saved")

	stdout, _, err = executeCLI(t, home, "calls", "clear")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cache cleared")

	stdout, _, err = executeCLI(t, home, "calls", "age")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no snapshot saved")

	_, _, err = executeCLI(t, home, "grades")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.hits("GET /students/42/grades"))
}

func TestHomeworkDoneUpdatesServerAndCache(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	stdout, _, err := executeCLI(t, home, "homework", "done", "h-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "homework h-1 marked completed")
	assert.Equal(t, 1, backend.hits("PUT /students/42/homework/h-1"))
	assert.JSONEq(t, `{"$type":"homework.completion","completed":true}`, backend.lastBody("PUT /students/42/homework/h-1"))

	stdout, _, err = executeCLI(t, home, "homework", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, "\"Completed\": true")
	assert.Equal(t, 1, backend.hits("GET /students/42/homework"))
}

func TestHomeworkDoneRollsBackOnServerError(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	backend.failPuts = true
	setupProfile(t, home, backend.URL)

	_, _, err := executeCLI(t, home, "homework", "done", "h-1")
	require.Error(t, err)

	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)

	stdout, _, err := executeCLI(t, home, "homework", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, "\"Completed\": false")
}

func TestMessagesReadRequiresConnectivity(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	_, _, err := executeCLI(t, home, "--offline", "messages", "read", "m-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOffline)
	assert.Zero(t, backend.hits("PUT /accounts/7/messages/m-1"))
}

func TestMessagesReadMarksMessage(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	stdout, _, err := executeCLI(t, home, "messages")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Parent evening")
	assert.Contains(t, stdout, "unread: 1")
	assert.Equal(t, "inbox", backend.lastQuery("GET /accounts/7/messages").Get("folder"))

	stdout, _, err = executeCLI(t, home, "messages", "read", "m-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "message m-1 marked read")
	assert.JSONEq(t, `{"$type":"message.read","read":true}`, backend.lastBody("PUT /accounts/7/messages/m-1"))

	stdout, _, err = executeCLI(t, home, "messages")
	require.NoError(t, err)
	assert.Contains(t, stdout, "unread: 0")
}

func TestDeltaAppliesOnlyToFetchedWeeks(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	_, _, err := executeCLI(t, home, "week")
	require.NoError(t, err)

	monday := currentMonday(t)
	deltas := strings.Join([]string{
		appointmentJSON("a-2", "Chemistry lab", monday.Add(10*time.Hour)),
		appointmentJSON("a-3", "Old news", time.Date(2020, time.March, 2, 9, 0, 0, 0, monday.Location())),
		"",
	}, "\n")

	stdout, _, err := executeCLIWithInput(t, home, deltas, "delta", "--kind", "appointment")
	require.NoError(t, err)
	assert.Contains(t, stdout, "applied 1, dropped 1")

	stdout, _, err = executeCLI(t, home, "week")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Chemistry lab")
	assert.Contains(t, stdout, "Mathematics")
	assert.Equal(t, 1, backend.hits("GET /students/42/appointments"))

	stdout, _, err = executeCLIWithInput(t, home, appointmentJSON("a-2", "", monday.Add(10*time.Hour)), "delta", "--removed")
	require.NoError(t, err)
	assert.Contains(t, stdout, "applied 1, dropped 0")

	stdout, _, err = executeCLI(t, home, "week")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "Chemistry lab")
}

func TestDeltaRejectsUnknownKind(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	_, _, err := executeCLIWithInput(t, home, "", "delta", "--kind", "grade")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported delta kind")
}

func TestDeltaDropsUndecodableLines(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	stdout, _, err := executeCLIWithInput(t, home, "{not json\n", "delta", "--kind", "homework")
	require.NoError(t, err)
	assert.Contains(t, stdout, "applied 0, dropped 1")

	_, _, err = executeCLI(t, home, "week")
	require.NoError(t, err)

	monday := currentMonday(t)
	deltas := strings.Join([]string{
		appointmentJSON("a-2", "Chemistry lab", monday.Add(10*time.Hour)),
		`{"id":true}`,
		appointmentJSON("a-3", "Biology field trip", monday.AddDate(0, 0, 1).Add(13*time.Hour)),
	}, "\n")

	stdout, _, err = executeCLIWithInput(t, home, deltas, "delta", "--kind", "appointment")
	require.NoError(t, err)
	assert.Contains(t, stdout, "applied 2, dropped 1")

	stdout, _, err = executeCLI(t, home, "week")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Chemistry lab")
	assert.Contains(t, stdout, "Biology field trip")
}

func TestSyncRefreshesEveryCallType(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	stdout, _, err := executeCLI(t, home, "sync", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	for _, name := range []string{"appointments", "homework", "grades", "messages"} {
		assert.Contains(t, stdout, fmt.Sprintf("\"Call\": %q", name))
	}
	assert.Equal(t, 1, backend.hits("GET /students/42/appointments"))
	assert.Equal(t, 1, backend.hits("GET /students/42/homework"))
	assert.Equal(t, 1, backend.hits("GET /students/42/grades"))
	assert.Equal(t, 1, backend.hits("GET /accounts/7/messages"))

	stdout, _, err = executeCLI(t, home, "sync")
	require.NoError(t, err)
	assert.Contains(t, stdout, "up to date")
	assert.NotContains(t, stdout, "updated")
	assert.Equal(t, 1, backend.hits("GET /students/42/grades"))
}

func TestUnauthorizedTokenFails(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	addProfile(t, home, backend.URL, "home")

	_, _, err := executeCLI(t, home, "auth", "set", "--token", "wrong")
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, "grades")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefreshFailureFallsBackToCache(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	_, _, err := executeCLI(t, home, "grades")
	require.NoError(t, err)

	backend.failGets = true
	stdout, stderr, err := executeCLI(t, home, "--force", "grades")
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning:")
	assert.Contains(t, stdout, "8.5")
}

func TestSQLiteSnapshotBackend(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SD_SNAPSHOT_BACKEND", "sqlite")
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	_, _, err := executeCLI(t, home, "grades")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "grades")
	require.NoError(t, err)

	assert.Equal(t, 1, backend.hits("GET /students/42/grades"))
	assert.FileExists(t, filepath.Join(home, ".schoolday", "snapshot.db"))
	assert.NoFileExists(t, filepath.Join(home, ".schoolday", "snapshot.toml"))
}

func TestUnsupportedSnapshotBackendFails(t *testing.T) {
	t.Setenv("SD_SNAPSHOT_BACKEND", "redis")

	_, _, err := executeCLI(t, t.TempDir(), "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported snapshot backend")
}

func TestAuthTokenIsStoredInSecretsDir(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	setupProfile(t, home, backend.URL)

	raw, err := os.ReadFile(filepath.Join(home, ".schoolday", "secrets", "profiles", "home", "token"))
	require.NoError(t, err)
	assert.Equal(t, testToken, strings.TrimSpace(string(raw)))

	_, _, err = executeCLI(t, home, "auth", "remove")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "profile", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no token")
}

type fakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	counts   map[string]int
	queries  map[string]map[string][]string
	bodies   map[string]string
	failGets bool
	failPuts bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	backend := &fakeBackend{
		counts:  map[string]int{},
		queries: map[string]map[string][]string{},
		bodies:  map[string]string{},
	}
	backend.Server = httptest.NewServer(http.HandlerFunc(backend.serve))
	t.Cleanup(backend.Close)

	return backend
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.counts[key]++
	b.queries[key] = r.URL.Query()
	b.bodies[key] = string(body)
	failGets, failPuts := b.failGets, b.failPuts
	b.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if (r.Method == http.MethodGet && failGets) || (r.Method == http.MethodPut && failPuts) {
		http.Error(w, "maintenance", http.StatusInternalServerError)
		return
	}
	if r.Method == http.MethodPut {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var items []string
	switch r.URL.Path {
	case "/students/42/appointments":
		monday := parseFrom(r)
		items = []string{appointmentJSON("a-1", "Mathematics", monday.Add(8*time.Hour+30*time.Minute))}
	case "/students/42/homework":
		monday := parseFrom(r)
		items = []string{fmt.Sprintf(`{"id":"h-1","start":%q,"subject":"en","description":"Read chapter 3","completed":false}`,
			monday.Add(9*time.Hour).Format(time.RFC3339))}
	case "/students/42/grades":
		items = []string{`{"id":17,"subject":"ma","value":"8.5","weight":2,"description":"Algebra test","enteredAt":"2024-09-10T12:00:00Z"}`}
	case "/accounts/7/messages":
		items = []string{`{"id":"m-1","subject":"Parent evening","sender":"Office","sentAt":"2024-09-09T07:00:00Z","read":false}`}
	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
}

func (b *fakeBackend) hits(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[key]
}

func (b *fakeBackend) lastQuery(key string) queryValues {
	b.mu.Lock()
	defer b.mu.Unlock()
	return queryValues(b.queries[key])
}

func (b *fakeBackend) lastBody(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[key]
}

type queryValues map[string][]string

func (q queryValues) Get(key string) string {
	if values := q[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func parseFrom(r *http.Request) time.Time {
	loc, _ := time.LoadLocation("Europe/Amsterdam")
	monday, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("from"), loc)
	if err != nil {
		return time.Time{}
	}
	return monday
}

func appointmentJSON(id, description string, start time.Time) string {
	return fmt.Sprintf(`{"id":%q,"start":%q,"end":%q,"description":%q,"subjects":["ma"],"infoType":"none"}`,
		id,
		start.Format(time.RFC3339),
		start.Add(50*time.Minute).Format(time.RFC3339),
		description,
	)
}

func currentMonday(t *testing.T) time.Time {
	t.Helper()

	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	return domain.PeriodKeyOf(time.Now().In(loc)).Monday(loc)
}

func addProfile(t *testing.T, home, baseURL, id string) {
	t.Helper()

	_, _, err := executeCLI(t, home,
		"profile", "add",
		"--id", id,
		"--name", "Home",
		"--base-url", baseURL,
		"--auth-context", "auth-1",
		"--account", "7",
		"--subject", "42",
	)
	require.NoError(t, err)
}

func setupProfile(t *testing.T, home, baseURL string) {
	t.Helper()

	addProfile(t, home, baseURL, "home")
	_, _, err := executeCLI(t, home, "auth", "set", "--token", testToken)
	require.NoError(t, err)
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWithInput(t, home, "", args...)
}

func executeCLIWithInput(t *testing.T, home, input string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(input))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
