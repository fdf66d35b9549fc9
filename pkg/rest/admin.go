package rest

import (
	"net/http"
	"os"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/aretw0/introspection"
	"github.com/aretw0/notesync/pkg/core"
)

const (
	defaultLogLimit     = 100
	defaultActivityDays = 7
	maxActivityItems    = 50
	maxActivityDays     = 3650
)

type dbStatus struct {
	Connected      bool     `json:"connected"`
	Store          string   `json:"store"`
	Collections    []string `json:"collections"`
	TotalDocuments int      `json:"totalDocuments"`
}

type adminStatsResponse struct {
	TotalNotes   int      `json:"totalNotes"`
	RecentNotes  int      `json:"recentNotes"`
	DBStatus     dbStatus `json:"dbStatus"`
	ServerUptime float64  `json:"serverUptime"`
	Timestamp    int64    `json:"timestamp"`
}

type activity struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	NoteID    string    `json:"noteId"`
}

type memoryUsage struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"totalAlloc"`
	Sys        uint64 `json:"sys"`
	HeapInUse  uint64 `json:"heapInUse"`
	NumGC      uint32 `json:"numGC"`
}

type systemResponse struct {
	Version     string         `json:"version"`
	GoVersion   string         `json:"goVersion"`
	Platform    string         `json:"platform"`
	Arch        string         `json:"arch"`
	PID         int            `json:"pid"`
	Goroutines  int            `json:"goroutines"`
	Uptime      float64        `json:"uptime"`
	MemoryUsage memoryUsage    `json:"memoryUsage"`
	Components  map[string]any `json:"components"`
}

func (a *api) adminStats(w http.ResponseWriter, r *http.Request) {
	notes, err := a.service.ListNotes(r.Context())
	if err != nil {
		a.logger.Error("admin stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	now := a.now()
	recent := core.CreatedSince(notes, now.Add(-24*time.Hour))

	storeType := "store"
	if state, ok := a.service.State().(core.ServiceState); ok {
		storeType = state.StoreType
	}

	writeJSON(w, http.StatusOK, adminStatsResponse{
		TotalNotes:  len(notes),
		RecentNotes: len(recent),
		DBStatus: dbStatus{
			Connected:      true,
			Store:          storeType,
			Collections:    []string{"notes"},
			TotalDocuments: len(notes),
		},
		ServerUptime: a.hub.Uptime().Seconds(),
		Timestamp:    now.UnixMilli(),
	})
}

func (a *api) adminClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.hub.Registry().Sessions())
}

func (a *api) adminLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, a.hub.Logs().Recent(r.URL.Query().Get("level"), limit))
}

func (a *api) clearLogs(w http.ResponseWriter, r *http.Request) {
	a.hub.Logs().Clear()
	a.logger.Info("server logs cleared")
	writeJSON(w, http.StatusOK, map[string]string{"message": "logs cleared"})
}

func (a *api) adminActivity(w http.ResponseWriter, r *http.Request) {
	days := defaultActivityDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = min(n, maxActivityDays)
	}

	notes, err := a.service.ListNotes(r.Context())
	if err != nil {
		a.logger.Error("admin activity failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load activity")
		return
	}

	since := a.now().Add(-time.Duration(days) * 24 * time.Hour)
	items := make([]activity, 0)
	for _, n := range core.CreatedSince(notes, since) {
		title := n.Title
		if title == "" {
			title = "untitled"
		}
		items = append(items, activity{
			Type:      "create",
			Timestamp: n.CreatedAt,
			Message:   "Note created: " + title,
			NoteID:    n.ID,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	if len(items) > maxActivityItems {
		items = items[:maxActivityItems]
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *api) adminSystem(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	components := make(map[string]any, len(a.components))
	for _, c := range a.components {
		if in, ok := c.(introspection.Introspectable); ok {
			components[c.ComponentType()] = in.State()
		}
	}

	writeJSON(w, http.StatusOK, systemResponse{
		Version:    a.version,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
		PID:        os.Getpid(),
		Goroutines: runtime.NumGoroutine(),
		Uptime:     a.hub.Uptime().Seconds(),
		MemoryUsage: memoryUsage{
			Alloc:      ms.Alloc,
			TotalAlloc: ms.TotalAlloc,
			Sys:        ms.Sys,
			HeapInUse:  ms.HeapInuse,
			NumGC:      ms.NumGC,
		},
		Components: components,
	})
}
