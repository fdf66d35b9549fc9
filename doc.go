// Package notesync is a real-time notes backend.
//
// A note store (filesystem, SQLite or memory) is the single source of truth.
// Its change stream is relayed to every connected websocket session, commands
// arriving on a session are validated and written through the store, and a
// set of admin sessions receives connection and log telemetry. A REST facade
// exposes the same operations over HTTP.
//
// Usage:
//
//	svc, err := notesync.New("./notes", notesync.WithAdapter("sqlite"))
//	if err != nil {
//		return err
//	}
//	srv := notesync.NewServer(svc, notesync.ServerConfig{Addr: ":3000"})
//	return srv.Run(ctx)
package notesync
