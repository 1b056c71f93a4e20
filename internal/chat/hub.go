package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
)

// MessageLog is the durable, ordered store of chat messages.
type MessageLog interface {
	Append(ctx context.Context, m NewMessage) (*Message, error)
	RecentHistory(ctx context.Context, limit int) ([]Message, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
	RenameAuthor(ctx context.Context, authorUUID, username string) error
}

// StatsEngine derives aggregate counters from the message log.
type StatsEngine interface {
	Compute(ctx context.Context) (Stats, error)
}

// Authorizer checks the credential carried by a single privileged frame.
type Authorizer interface {
	IsAdmin(credential string) bool
}

// Bridge relays messages to and from the external Discord bridge.
type Bridge interface {
	Publish(ctx context.Context, m Message) error
	Listen(ctx context.Context, fn func(BridgedPost)) error
}

// Hub dispatches inbound frames and fans the results out to every open
// connection. Frames from different connections are handled concurrently,
// so broadcasts go out in the order their storage calls complete.
type Hub struct {
	registry     *Registry
	messages     MessageLog
	stats        StatsEngine
	gate         Authorizer
	bridge       Bridge
	historyLimit int
	logger       *slog.Logger
}

type Option func(*Hub)

// WithBridge enables the Discord relay.
func WithBridge(b Bridge) Option {
	return func(h *Hub) { h.bridge = b }
}

func WithHistoryLimit(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.historyLimit = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l.With("component", "hub") }
}

func NewHub(registry *Registry, messages MessageLog, stats StatsEngine, gate Authorizer, opts ...Option) *Hub {
	h := &Hub{
		registry:     registry,
		messages:     messages,
		stats:        stats,
		gate:         gate,
		historyLimit: DefaultHistory,
		logger:       slog.Default().With("component", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry exposes the connection set, mostly for health reporting.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run blocks until ctx is done, relaying bridged posts when a bridge is
// configured. On return every connection is closed.
func (h *Hub) Run(ctx context.Context) error {
	defer h.registry.CloseAll()

	if h.bridge != nil {
		err := h.bridge.Listen(ctx, func(p BridgedPost) {
			if err := h.ingestBridged(ctx, p); err != nil {
				h.logger.Warn("Dropped bridged post", "error", err)
			}
		})
		if err != nil && ctx.Err() == nil {
			h.logger.Error("Bridge listener stopped", "error", err)
		}
	}

	<-ctx.Done()
	return nil
}

// Connect registers c, sends its history and announces the new count and
// stats. Frames broadcast while history loads are delivered after it, so a
// message stored in that window may arrive both in history and on its own.
func (h *Hub) Connect(ctx context.Context, c *Client) {
	c.hold()
	h.registry.Register(c)

	var first []byte
	if history, err := h.History(ctx); err != nil {
		h.logger.Error("History unavailable", "conn_id", c.id, "error", err)
	} else if first, err = json.Marshal(historyFrame{Type: FrameHistory, Data: history}); err != nil {
		h.logger.Error("Encode frame", "error", err)
	}
	if err := c.release(first); err != nil {
		h.logger.Warn("Dropping client during connect", "conn_id", c.id, "error", err)
		h.registry.Unregister(c)
	}

	h.broadcastCount()
	h.broadcastStats(ctx)
}

// Disconnect unregisters c and announces the new count.
func (h *Hub) Disconnect(c *Client) {
	h.registry.Unregister(c)
	h.broadcastCount()
}

// History returns up to historyLimit messages, oldest first.
func (h *Hub) History(ctx context.Context) ([]Message, error) {
	history, err := h.messages.RecentHistory(ctx, h.historyLimit)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []Message{}
	}
	slices.Reverse(history)
	return history, nil
}

// HandleFrame decodes and dispatches one inbound frame. The returned error
// only classifies why a frame was dropped; it never means the connection
// should close.
func (h *Hub) HandleFrame(ctx context.Context, raw []byte) error {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	// A normal post is recognised by the absence of a type.
	if f.Type == nil || *f.Type == "" {
		return h.post(ctx, f)
	}

	switch *f.Type {
	case CmdDeleteMessage:
		return h.deleteMessage(ctx, f)
	case CmdChangeUsername:
		return h.changeUsername(ctx, f)
	case CmdAdminMessage:
		return h.adminMessage(ctx, f)
	default:
		return nil
	}
}

// authorize is evaluated for every privileged frame; nothing is remembered
// between frames or per connection.
func (h *Hub) authorize(f InboundFrame) error {
	if f.Credential == "" || !h.gate.IsAdmin(f.Credential) {
		return ErrUnauthorized
	}
	return nil
}

func (h *Hub) deleteMessage(ctx context.Context, f InboundFrame) error {
	if err := h.authorize(f); err != nil {
		return fmt.Errorf("%s: %w", CmdDeleteMessage, err)
	}
	if f.MessageID == nil {
		return fmt.Errorf("%w: %s without messageId", ErrProtocol, CmdDeleteMessage)
	}

	deleted, err := h.messages.DeleteByID(ctx, *f.MessageID)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}

	h.broadcast(deletedFrame{Type: FrameMessageDeleted, MessageID: *f.MessageID})
	h.broadcastStats(ctx)
	return nil
}

func (h *Hub) changeUsername(ctx context.Context, f InboundFrame) error {
	if err := h.authorize(f); err != nil {
		return fmt.Errorf("%s: %w", CmdChangeUsername, err)
	}
	if f.UserUUID == nil || *f.UserUUID == "" {
		return fmt.Errorf("%w: %s without userUUID", ErrProtocol, CmdChangeUsername)
	}

	name := Sanitize(f.NewUsername)
	if name == "" {
		name = AnonymousUsername
	}
	if err := h.messages.RenameAuthor(ctx, *f.UserUUID, name); err != nil {
		return err
	}

	// Poster count is unaffected, so no stats refresh.
	h.broadcast(usernameFrame{Type: FrameUsernameChange, UserUUID: *f.UserUUID, NewUsername: name})
	return nil
}

func (h *Hub) adminMessage(ctx context.Context, f InboundFrame) error {
	if err := h.authorize(f); err != nil {
		return fmt.Errorf("%s: %w", CmdAdminMessage, err)
	}
	content := Sanitize(deref(f.Content))
	if content == "" {
		return fmt.Errorf("%w: %s without content", ErrProtocol, CmdAdminMessage)
	}

	return h.publish(ctx, NewMessage{
		Username:   AdminUsername,
		Content:    content,
		Type:       TypeAdmin,
		Color:      AdminColor,
		AuthorUUID: AdminUUID,
	})
}

func (h *Hub) post(ctx context.Context, f InboundFrame) error {
	if deref(f.Content) == "" || deref(f.Username) == "" || deref(f.UserUUID) == "" {
		return fmt.Errorf("%w: post requires content, username and userUUID", ErrProtocol)
	}
	if *f.UserUUID == AdminUUID {
		return fmt.Errorf("%w: reserved author uuid", ErrProtocol)
	}

	content := Sanitize(*f.Content)
	if content == "" {
		return fmt.Errorf("%w: empty content after sanitizing", ErrProtocol)
	}
	username := Sanitize(*f.Username)
	if username == "" {
		username = AnonymousUsername
	}
	color := f.MessageColor
	if color == "" {
		color = DefaultColor
	}

	return h.publish(ctx, NewMessage{
		Username:   username,
		Content:    content,
		Type:       postType(f.MessageType),
		Color:      color,
		AuthorUUID: *f.UserUUID,
	})
}

func (h *Hub) ingestBridged(ctx context.Context, p BridgedPost) error {
	content := Sanitize(p.Content)
	if content == "" {
		return fmt.Errorf("%w: bridged post without content", ErrProtocol)
	}
	username := Sanitize(p.Username)
	if username == "" {
		username = AnonymousUsername
	}
	color := p.Color
	if color == "" {
		color = DefaultColor
	}
	author := p.UserUUID
	if author == AdminUUID {
		author = ""
	}

	return h.publish(ctx, NewMessage{
		Username:   username,
		Content:    content,
		Type:       TypeDiscord,
		Color:      color,
		AuthorUUID: author,
	})
}

// publish appends m, broadcasts the stored row and refreshes stats. Nothing
// is broadcast when the append fails.
func (h *Hub) publish(ctx context.Context, m NewMessage) error {
	stored, err := h.messages.Append(ctx, m)
	if err != nil {
		return err
	}

	h.broadcast(messageFrame{Type: FrameMessage, Data: *stored})

	if h.bridge != nil && stored.Type != TypeDiscord {
		if err := h.bridge.Publish(ctx, *stored); err != nil {
			h.logger.Warn("Bridge publish failed", "message_id", stored.ID, "error", err)
		}
	}

	h.broadcastStats(ctx)
	return nil
}

func (h *Hub) broadcastCount() {
	h.broadcast(countFrame{Type: FrameClientCount, Count: h.registry.Count()})
}

func (h *Hub) broadcastStats(ctx context.Context) {
	stats, err := h.stats.Compute(ctx)
	if err != nil {
		h.logger.Error("Stats unavailable", "error", err)
		return
	}
	h.broadcast(statsFrame{Type: FrameStats, Data: stats})
}

func (h *Hub) broadcast(frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Encode frame", "error", err)
		return
	}
	n := h.registry.Broadcast(payload)
	h.logger.Debug("Broadcast", "recipients", n)
}

// postType accepts the client's message_type only where a client may set it.
func postType(t string) string {
	if t == TypeDiscord {
		return TypeDiscord
	}
	return TypeChat
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
