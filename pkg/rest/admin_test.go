package rest_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/realtime"
)

func (f *fixture) seedAt(t *testing.T, title string, at time.Time) core.Note {
	t.Helper()
	n, err := f.service.CreateNote(context.Background(), core.NoteFields{Title: title, Content: "x", CreatedAt: at})
	require.NoError(t, err)
	return n
}

func TestAdmin_Stats(t *testing.T) {
	f := newFixture(t)
	f.seedAt(t, "fresh", time.Now().Add(-time.Hour))
	f.seedAt(t, "old", time.Now().Add(-72*time.Hour))

	rec := f.do(t, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, body["totalNotes"])
	assert.EqualValues(t, 1, body["recentNotes"])

	db, ok := body["dbStatus"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, db["connected"])
	assert.Equal(t, "memory-store", db["store"])
	assert.EqualValues(t, 2, db["totalDocuments"])
	assert.Equal(t, []any{"notes"}, db["collections"])
}

func TestAdmin_Clients(t *testing.T) {
	f := newFixture(t)
	s1 := f.hub.Connect("10.0.0.1", "viewer", &outbox{})
	s2 := f.hub.Connect("10.0.0.2", "dashboard", &outbox{})
	f.hub.Registry().JoinAdmin(s2.ID)

	rec := f.do(t, http.MethodGet, "/api/admin/clients", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sessions := decode[[]realtime.Session](t, rec)
	require.Len(t, sessions, 2)
	byID := map[string]realtime.Session{}
	for _, s := range sessions {
		byID[s.ID] = s
	}
	assert.False(t, byID[s1.ID].IsAdmin)
	assert.True(t, byID[s2.ID].IsAdmin)
	assert.Equal(t, "10.0.0.1", byID[s1.ID].Address)
	assert.Equal(t, "dashboard", byID[s2.ID].UserAgent)
}

func TestAdmin_LogsFilterLimitAndClear(t *testing.T) {
	f := newFixture(t)
	f.hub.Log(realtime.LevelInfo, realtime.SourceServer, "one")
	f.hub.Log(realtime.LevelError, realtime.SourceStore, "two")
	f.hub.Log(realtime.LevelInfo, realtime.SourceAPI, "three")

	all := decode[[]realtime.LogEntry](t, f.do(t, http.MethodGet, "/api/admin/logs", nil))
	require.Len(t, all, 3)
	assert.Equal(t, "three", all[0].Message, "newest first")

	errs := decode[[]realtime.LogEntry](t, f.do(t, http.MethodGet, "/api/admin/logs?level=error", nil))
	require.Len(t, errs, 1)
	assert.Equal(t, "two", errs[0].Message)

	limited := decode[[]realtime.LogEntry](t, f.do(t, http.MethodGet, "/api/admin/logs?level=all&limit=2", nil))
	assert.Len(t, limited, 2)

	rec := f.do(t, http.MethodGet, "/api/admin/logs?limit=lots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/admin/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.hub.Logs().Len())
}

func TestAdmin_Activity(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	recent := f.seedAt(t, "recent", now.Add(-time.Hour))
	older := f.seedAt(t, "older", now.Add(-48*time.Hour))
	f.seedAt(t, "ancient", now.Add(-10*24*time.Hour))

	type item struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		NoteID  string `json:"noteId"`
	}

	items := decode[[]item](t, f.do(t, http.MethodGet, "/api/admin/activity", nil))
	require.Len(t, items, 2)
	assert.Equal(t, recent.ID, items[0].NoteID)
	assert.Equal(t, older.ID, items[1].NoteID)
	assert.Equal(t, "create", items[0].Type)
	assert.Equal(t, "Note created: recent", items[0].Message)

	wide := decode[[]item](t, f.do(t, http.MethodGet, "/api/admin/activity?days=30", nil))
	assert.Len(t, wide, 3)

	rec := f.do(t, http.MethodGet, "/api/admin/activity?days=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Huge windows are capped instead of overflowing into the future.
	huge := decode[[]item](t, f.do(t, http.MethodGet, "/api/admin/activity?days=9223372036854775807", nil))
	assert.Len(t, huge, 3)
}

func TestAdmin_ActivityIsCapped(t *testing.T) {
	f := newFixture(t)
	base := time.Now().Add(-time.Hour)
	for i := range 60 {
		f.seedAt(t, "n", base.Add(time.Duration(i)*time.Second))
	}

	items := decode[[]map[string]any](t, f.do(t, http.MethodGet, "/api/admin/activity", nil))
	assert.Len(t, items, 50)
}

func TestAdmin_System(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/admin/system", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, body["goVersion"])
	assert.NotZero(t, body["pid"])

	components, ok := body["components"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, components, "service")
	assert.Contains(t, components, "realtime-hub")
}
