package realtime

import "context"

// joinAdmin adds the session to the admin set and replies with a snapshot of
// the sessions and the stats. Joining again only repeats the snapshot.
func (h *Hub) joinAdmin(ctx context.Context, sessionID string) error {
	if !h.registry.JoinAdmin(sessionID) {
		return nil
	}
	h.logger.Info("admin joined", "session", sessionID)

	h.sendClients(sessionID)
	return h.sendStats(ctx, sessionID)
}

// The request-* events are served to any session, admin or not.

func (h *Hub) sendStats(ctx context.Context, sessionID string) error {
	stats, err := h.Stats(ctx)
	if err != nil {
		return err
	}
	h.registry.Send(sessionID, EventStatsUpdate, stats)
	return nil
}

func (h *Hub) sendClients(sessionID string) {
	h.registry.Send(sessionID, EventClientsUpdate, h.registry.Sessions())
}

func (h *Hub) sendLogs(sessionID string) {
	h.registry.Send(sessionID, EventLogsUpdate, h.logs.Recent("", 0))
}
