// Package matrix connects Kibun to Matrix rooms: it syncs, filters incoming
// text messages and sends replies.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string

	// Rooms lists the room IDs the bot joins and listens in.
	Rooms []string

	// SyncState persists the sync token across restarts. When nil the
	// token is kept in memory and room history replays on restart.
	SyncState SyncStateStore
}

// Message is an incoming text message from a listened room.
type Message struct {
	RoomID  string
	EventID string
	Sender  string
	Body    string
}

// MessageHandler processes one incoming message.
type MessageHandler func(ctx context.Context, msg Message)

// Client wraps the mautrix client.
type Client struct {
	client   *mautrix.Client
	config   Config
	stopOnce sync.Once
	stopCh   chan struct{}
	handler  MessageHandler
}

// New creates a client. It does not contact the homeserver.
func New(cfg Config) (*Client, error) {
	if cfg.Homeserver == "" || cfg.UserID == "" || cfg.AccessToken == "" {
		return nil, errors.New("matrix: homeserver, user ID and access token are required")
	}
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	if cfg.SyncState != nil {
		client.Store = NewDBSyncStore(cfg.SyncState)
		slog.Info("matrix: using persistent sync store")
	} else {
		slog.Warn("matrix: no sync store configured, history will replay on restart")
	}

	return &Client{
		client: client,
		config: cfg,
		stopCh: make(chan struct{}),
	}, nil
}

// Start joins the configured rooms and syncs in the background, reconnecting
// with exponential back-off until Stop is called.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.handler = handler

	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return errors.New("matrix: unexpected syncer type")
	}
	syncer.OnEventType(event.EventMessage, c.handleEvent)

	for _, roomID := range c.config.Rooms {
		if err := c.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}

	go c.syncLoop()
	return nil
}

func (c *Client) syncLoop() {
	const (
		backoffMin = 2 * time.Second
		backoffMax = 5 * time.Minute
	)
	backoff := backoffMin
	for {
		err := c.client.Sync()
		if err == nil {
			// Only a StopSync call ends Sync cleanly.
			return
		}
		select {
		case <-c.stopCh:
			return
		default:
		}
		slog.Error("matrix: sync stopped, reconnecting", "err", err, "backoff", backoff)
		select {
		case <-c.stopCh:
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffMax)
	}
}

// Stop ends syncing. It is safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.client.StopSync()
	})
}

// Reply sends message as a reply to eventID.
func (c *Client) Reply(ctx context.Context, roomID, eventID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    message,
		RelatesTo: &event.RelatesTo{
			InReplyTo: &event.InReplyTo{EventID: id.EventID(eventID)},
		},
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// SendNotice sends a notice, which clients render less prominently.
func (c *Client) SendNotice(ctx context.Context, roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

// SetTyping toggles the typing indicator.
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error {
	if _, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, timeout); err != nil {
		return fmt.Errorf("failed to set typing: %w", err)
	}
	return nil
}

// DisplayName returns userID's display name.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	profile, err := c.client.GetProfile(ctx, id.UserID(userID))
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	return profile.DisplayName, nil
}

// UserID returns the bot's user ID.
func (c *Client) UserID() string {
	return c.config.UserID
}

// IsListening reports whether roomID is one of the configured rooms.
func (c *Client) IsListening(roomID string) bool {
	return slices.Contains(c.config.Rooms, roomID)
}

func (c *Client) handleEvent(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}
	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return
	}
	if !c.IsListening(evt.RoomID.String()) || c.handler == nil {
		return
	}
	c.handler(ctx, Message{
		RoomID:  evt.RoomID.String(),
		EventID: evt.ID.String(),
		Sender:  evt.Sender.String(),
		Body:    content.Body,
	})
}

func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// Homeservers answer M_FORBIDDEN when the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("matrix: join refused, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
