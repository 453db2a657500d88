package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceGradesKeepsServerOrderAndDropsDuplicates(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 9, 9, 8, 0, 0, 0, time.UTC)
	state := ReplaceGrades(GradeState{}, []Grade{
		{ID: "g2", Value: "7,5"},
		{ID: "g1", Value: "6,0"},
		{ID: "g2", Value: "1,0"},
		{ID: "", Value: "9,0"},
	}, now)

	require.Len(t, state.Items, 2)
	assert.Equal(t, "g2", state.Items[0].ID)
	assert.Equal(t, "7,5", state.Items[0].Value)
	assert.Equal(t, "g1", state.Items[1].ID)
	assert.True(t, now.Equal(state.FetchedAt))

	grade, ok := state.ByID("g1")
	assert.True(t, ok)
	assert.Equal(t, "6,0", grade.Value)
	_, ok = state.ByID("missing")
	assert.False(t, ok)
}

func TestReplaceFolderLeavesOtherFolders(t *testing.T) {
	t.Parallel()

	state := ReplaceFolder(NewMessageState(), "sent", []Message{{ID: "s1"}})
	state = ReplaceFolder(state, DefaultMessageFolder, []Message{{ID: "m1"}, {ID: "m1"}, {ID: "m2"}})

	assert.Equal(t, []string{"inbox", "sent"}, state.FolderNames())
	assert.Len(t, state.Folder("sent"), 1)
	require.Len(t, state.Folder("inbox"), 2)
	assert.Equal(t, "inbox", state.Folder("inbox")[0].Folder)
}

func TestSetMessageRead(t *testing.T) {
	t.Parallel()

	state := ReplaceFolder(NewMessageState(), DefaultMessageFolder, []Message{{ID: "m1"}, {ID: "m2"}})

	updated, ok := SetMessageRead(state, "m2", true)
	require.True(t, ok)

	message, _ := updated.ByID("m2")
	assert.True(t, message.Read)
	original, _ := state.ByID("m2")
	assert.False(t, original.Read)

	same, ok := SetMessageRead(state, "missing", true)
	assert.False(t, ok)
	assert.Equal(t, state, same)
}

func TestHTTPErrorMessage(t *testing.T) {
	t.Parallel()

	err := error(&HTTPError{Method: "GET", Path: "/students/1/grades", StatusCode: 502, Body: "bad gateway"})
	assert.EqualError(t, err, "GET /students/1/grades: status 502: bad gateway")

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 502, httpErr.StatusCode)
}
