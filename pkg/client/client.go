package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aretw0/notesync/pkg/realtime"
)

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("client closed")

// Event is one server event as received.
type Event struct {
	Name string
	Data json.RawMessage
}

// Options configures Dial.
type Options struct {
	UserAgent    string
	WriteTimeout time.Duration
	EventBuffer  int
	Logger       *slog.Logger
}

// Client is a websocket session against a notesync server. Every inbound
// event is applied to its View before being published on Events.
type Client struct {
	conn    *websocket.Conn
	view    *View
	events  chan Event
	done    chan struct{}
	options Options

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to a websocket endpoint, e.g. ws://localhost:3000/ws.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	header := http.Header{}
	if opts.UserAgent != "" {
		header.Set("User-Agent", opts.UserAgent)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		view:    NewView(),
		events:  make(chan Event, opts.EventBuffer),
		done:    make(chan struct{}),
		options: opts,
	}
	go c.readLoop()
	return c, nil
}

// View returns the local mirror of the collection.
func (c *Client) View() *View { return c.view }

// Events publishes every received event after it was applied to the View.
// When the buffer is full, events are dropped (the View is still updated).
// The channel closes when the connection ends.
func (c *Client) Events() <-chan Event { return c.events }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close ends the session.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Send writes a raw event.
func (c *Client) Send(event string, data any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	frame, err := realtime.EncodeFrame(event, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// LoadNotes asks for the full collection (notes-loaded).
func (c *Client) LoadNotes() error { return c.Send(realtime.EventLoadNotes, nil) }

// CreateNote asks the server to create a note (note-created ack).
func (c *Client) CreateNote(title, content string) error {
	return c.Send(realtime.EventCreateNote, realtime.CreateNotePayload{Title: title, Content: content})
}

// UpdateNote asks the server to update a note.
func (c *Client) UpdateNote(id, title, content string) error {
	return c.Send(realtime.EventUpdateNote, realtime.UpdateNotePayload{ID: id, Title: title, Content: content})
}

// DeleteNote asks the server to delete a note.
func (c *Client) DeleteNote(id string) error { return c.Send(realtime.EventDeleteNote, id) }

// JoinAdmin opts into admin telemetry.
func (c *Client) JoinAdmin() error { return c.Send(realtime.EventAdminJoin, nil) }

// RequestStats asks for a stats-update.
func (c *Client) RequestStats() error { return c.Send(realtime.EventAdminRequestStats, nil) }

// RequestClients asks for a clients-update.
func (c *Client) RequestClients() error { return c.Send(realtime.EventAdminRequestClients, nil) }

// RequestLogs asks for a logs-update.
func (c *Client) RequestLogs() error { return c.Send(realtime.EventAdminRequestLogs, nil) }

// Activity refreshes the session's last activity.
func (c *Client) Activity() error { return c.Send(realtime.EventActivity, nil) }

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	logger := c.options.Logger
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("client read failed", "error", err)
			}
			return
		}

		var f realtime.Frame
		if err := json.Unmarshal(message, &f); err != nil {
			logger.Warn("malformed frame from server", "error", err)
			continue
		}
		if err := c.view.Apply(f.Event, f.Data); err != nil {
			logger.Warn("failed to apply event", "event", f.Event, "error", err)
		}

		select {
		case c.events <- Event{Name: f.Event, Data: f.Data}:
		default:
			logger.Debug("event buffer full, dropping", "event", f.Event)
		}
	}
}
