package realtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/realtime"
)

func TestCommands_LoadNotes(t *testing.T) {
	f := newFixture(t)
	s, rec := f.connect(t)

	f.send(s.ID, realtime.EventLoadNotes, nil)
	got := rec.waitFor(t, realtime.EventNotesLoaded, 1)
	assert.JSONEq(t, "[]", string(got[0].Data))

	_, err := f.store.Create(context.Background(), core.NoteFields{Title: "A", Content: "B"})
	require.NoError(t, err)

	rec.reset()
	f.send(s.ID, realtime.EventLoadNotes, nil)
	got = rec.waitFor(t, realtime.EventNotesLoaded, 1)
	notes := decode[[]core.Note](t, got[0])
	require.Len(t, notes, 1)
	assert.Equal(t, "A", notes[0].Title)
}

func TestCommands_CreateAcksOriginatorOnly(t *testing.T) {
	f := newFixture(t)
	s1, rec1 := f.connect(t)
	_, rec2 := f.connect(t)

	f.send(s1.ID, realtime.EventCreateNote, realtime.CreateNotePayload{Title: "A", Content: "B"})

	acks := rec1.waitFor(t, realtime.EventNoteCreated, 1)
	require.Len(t, acks, 1)
	n := decode[core.Note](t, acks[0])
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "A", n.Title)
	assert.Empty(t, rec2.events(realtime.EventNoteCreated))

	_, err := f.store.Get(context.Background(), n.ID)
	assert.NoError(t, err)
}

func TestCommands_CreateHonoursClientTimestamp(t *testing.T) {
	f := newFixture(t)
	s, rec := f.connect(t)

	f.send(s.ID, realtime.EventCreateNote, map[string]string{
		"title":     "A",
		"content":   "B",
		"createdAt": "2025-03-01T12:00:00Z",
	})

	n := decode[core.Note](t, rec.waitFor(t, realtime.EventNoteCreated, 1)[0])
	assert.Equal(t, 2025, n.CreatedAt.Year())
}

func TestCommands_CreateValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		message string
	}{
		{"empty title", realtime.CreateNotePayload{Content: "B"}, "title is required"},
		{"empty content", realtime.CreateNotePayload{Title: "A"}, "content is required"},
		{"not an object", "hello", "invalid payload"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			s1, rec1 := f.connect(t)
			_, rec2 := f.connect(t)

			f.send(s1.ID, realtime.EventCreateNote, tc.payload)

			errs := rec1.waitFor(t, realtime.EventError, 1)
			msg := decode[realtime.ErrorPayload](t, errs[0])
			assert.Contains(t, msg.Message, tc.message)
			assert.Empty(t, rec1.events(realtime.EventNoteCreated))
			assert.Empty(t, rec2.names(), "errors are never broadcast")

			notes, err := f.store.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, notes)
		})
	}
}

func TestCommands_UpdateBroadcastsToAll(t *testing.T) {
	f := newFixture(t)
	s1, rec1 := f.connect(t)
	_, rec2 := f.connect(t)

	n, err := f.store.Create(context.Background(), core.NoteFields{Title: "A", Content: "B"})
	require.NoError(t, err)

	f.send(s1.ID, realtime.EventUpdateNote, realtime.UpdateNotePayload{ID: n.ID, Title: "A2", Content: "B2"})

	for _, rec := range []*recorder{rec1, rec2} {
		got := rec.waitFor(t, realtime.EventNoteUpdated, 1)
		updated := decode[core.Note](t, got[0])
		assert.Equal(t, n.ID, updated.ID)
		assert.Equal(t, "A2", updated.Title)
		assert.False(t, updated.UpdatedAt.IsZero())
	}
}

func TestCommands_UpdateUnknownID(t *testing.T) {
	f := newFixture(t)
	s1, rec1 := f.connect(t)
	_, rec2 := f.connect(t)

	f.send(s1.ID, realtime.EventUpdateNote, realtime.UpdateNotePayload{ID: "missing", Title: "x", Content: "y"})

	errs := rec1.waitFor(t, realtime.EventError, 1)
	assert.Equal(t, core.ErrNotFound.Error(), decode[realtime.ErrorPayload](t, errs[0]).Message)
	assert.Empty(t, rec1.events(realtime.EventNoteUpdated))
	assert.Empty(t, rec2.names())
}

func TestCommands_DeleteBroadcastsBareID(t *testing.T) {
	f := newFixture(t)
	s1, rec1 := f.connect(t)
	_, rec2 := f.connect(t)

	n, err := f.store.Create(context.Background(), core.NoteFields{Title: "A", Content: "B"})
	require.NoError(t, err)

	// Both shapes are accepted: a bare id and {"id": ...}.
	f.send(s1.ID, realtime.EventDeleteNote, n.ID)

	for _, rec := range []*recorder{rec1, rec2} {
		got := rec.waitFor(t, realtime.EventNoteDeleted, 1)
		assert.Equal(t, n.ID, decode[string](t, got[0]))
	}

	_, err = f.store.Get(context.Background(), n.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	f.send(s1.ID, realtime.EventDeleteNote, map[string]string{"id": n.ID})
	rec1.waitFor(t, realtime.EventError, 1)
	assert.Len(t, rec2.events(realtime.EventNoteDeleted), 1)
}

func TestCommands_StoreFailureOnlyReachesOriginator(t *testing.T) {
	f := newFixture(t)
	s1, rec1 := f.connect(t)
	s2, rec2 := f.connect(t)

	f.store.FailWith(errors.New("disk on fire"))

	f.send(s1.ID, realtime.EventCreateNote, realtime.CreateNotePayload{Title: "A", Content: "B"})

	errs := rec1.waitFor(t, realtime.EventError, 1)
	msg := decode[realtime.ErrorPayload](t, errs[0]).Message
	assert.Equal(t, "failed to create note", msg)
	assert.NotContains(t, msg, "disk on fire")
	assert.Empty(t, rec2.names())

	// The failing session keeps working.
	f.store.FailWith(nil)
	f.send(s1.ID, realtime.EventCreateNote, realtime.CreateNotePayload{Title: "A", Content: "B"})
	rec1.waitFor(t, realtime.EventNoteCreated, 1)

	_, ok := f.hub.Registry().Get(s2.ID)
	assert.True(t, ok)
}

func TestCommands_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	s, rec := f.connect(t)

	f.send(s.ID, "explode", nil)

	errs := rec.waitFor(t, realtime.EventError, 1)
	assert.Contains(t, decode[realtime.ErrorPayload](t, errs[0]).Message, "unknown event")
}

func TestCommands_AdminJoinSnapshots(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Create(context.Background(), core.NoteFields{Title: "A", Content: "B"})
	require.NoError(t, err)

	_, _ = f.connect(t)
	admin, rec := f.connect(t)

	f.send(admin.ID, realtime.EventAdminJoin, nil)

	clients := decode[[]realtime.Session](t, rec.waitFor(t, realtime.EventClientsUpdate, 1)[0])
	assert.Len(t, clients, 2)

	stats := decode[realtime.Stats](t, rec.waitFor(t, realtime.EventStatsUpdate, 1)[0])
	assert.Equal(t, 1, stats.TotalNotes)
	assert.Equal(t, 2, stats.ConnectedClients)
	assert.Equal(t, 1, stats.AdminClients)
	assert.NotZero(t, stats.Timestamp)

	assert.Equal(t, []string{realtime.EventClientsUpdate, realtime.EventStatsUpdate}, rec.names())
}

func TestCommands_SnapshotsWithoutJoin(t *testing.T) {
	f := newFixture(t)
	s, rec := f.connect(t)

	f.send(s.ID, realtime.EventAdminRequestStats, nil)
	f.send(s.ID, realtime.EventAdminRequestClients, nil)
	f.send(s.ID, realtime.EventAdminRequestLogs, nil)

	rec.waitFor(t, realtime.EventStatsUpdate, 1)
	rec.waitFor(t, realtime.EventClientsUpdate, 1)
	rec.waitFor(t, realtime.EventLogsUpdate, 1)
	assert.False(t, f.hub.Registry().IsAdmin(s.ID))
}

func TestCommands_MutationsLogToAdminsOnly(t *testing.T) {
	f := newFixture(t)
	admin, adminRec := f.connect(t)
	f.send(admin.ID, realtime.EventAdminJoin, nil)

	user, userRec := f.connect(t)
	f.send(user.ID, realtime.EventCreateNote, realtime.CreateNotePayload{Title: "Groceries", Content: "Milk"})

	logs := adminRec.waitFor(t, realtime.EventServerLog, 1)
	entry := decode[realtime.LogEntry](t, logs[len(logs)-1])
	assert.Equal(t, realtime.LevelInfo, entry.Level)
	assert.Contains(t, entry.Message, "Groceries")
	assert.Empty(t, userRec.events(realtime.EventServerLog))

	adminRec.reset()
	f.send(admin.ID, realtime.EventAdminRequestLogs, nil)
	recent := decode[[]realtime.LogEntry](t, adminRec.waitFor(t, realtime.EventLogsUpdate, 1)[0])
	require.NotEmpty(t, recent)
	assert.Contains(t, recent[0].Message, "Groceries")
}
