package chat

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memLog is an in-memory MessageLog and StatsEngine.
type memLog struct {
	mu        sync.Mutex
	rows      []Message
	nextID    int64
	appendErr error
	statsErr  error
}

func (m *memLog) Append(_ context.Context, nm NewMessage) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.nextID++
	row := Message{
		ID:        m.nextID,
		Username:  nm.Username,
		Content:   nm.Content,
		Timestamp: time.Now().UTC(),
		Type:      nm.Type,
		Color:     nm.Color,
	}
	if nm.AuthorUUID != "" {
		author := nm.AuthorUUID
		row.AuthorUUID = &author
	}
	m.rows = append(m.rows, row)
	return &row, nil
}

func (m *memLog) RecentHistory(_ context.Context, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	out := slices.Clone(m.rows)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLog) DeleteByID(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows {
		if row.ID == id {
			m.rows = slices.Delete(m.rows, i, i+1)
			return true, nil
		}
	}
	return false, nil
}

func (m *memLog) RenameAuthor(_ context.Context, authorUUID, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows {
		if row.AuthorUUID != nil && *row.AuthorUUID == authorUUID && row.Type != TypeDiscord {
			m.rows[i].Username = username
		}
	}
	return nil
}

func (m *memLog) Compute(context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsErr != nil {
		return Stats{}, m.statsErr
	}
	authors := map[string]struct{}{}
	for _, row := range m.rows {
		if row.AuthorUUID != nil && *row.AuthorUUID != AdminUUID {
			authors[*row.AuthorUUID] = struct{}{}
		}
	}
	return Stats{TotalMessages: int64(len(m.rows)), UniquePosters: int64(len(authors))}, nil
}

func (m *memLog) get(id int64) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id {
			return row, true
		}
	}
	return Message{}, false
}

// tokenGate accepts exactly one admin credential and counts checks.
type tokenGate struct {
	admin string
	calls atomic.Int32
}

func (g *tokenGate) IsAdmin(credential string) bool {
	g.calls.Add(1)
	return credential == g.admin
}

type fakeBridge struct {
	mu        sync.Mutex
	inbound   []BridgedPost
	published []Message
}

func (b *fakeBridge) Publish(_ context.Context, m Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, m)
	return nil
}

func (b *fakeBridge) Listen(_ context.Context, fn func(BridgedPost)) error {
	for _, p := range b.inbound {
		fn(p)
	}
	return errors.New("subscription closed")
}

func (b *fakeBridge) publishedMessages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.published)
}

const adminToken = "valid-admin"

func newTestHub(t *testing.T, opts ...Option) (*Hub, *memLog, *tokenGate) {
	t.Helper()
	log := &memLog{}
	gate := &tokenGate{admin: adminToken}
	return NewHub(NewRegistry(nil), log, log, gate, opts...), log, gate
}

// outFrame is the union of every server -> client frame.
type outFrame struct {
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
	MessageID   int64           `json:"messageId"`
	UserUUID    string          `json:"userUUID"`
	NewUsername string          `json:"newUsername"`
	Count       int             `json:"count"`
}

func (f outFrame) message(t *testing.T) Message {
	t.Helper()
	var m Message
	require.NoError(t, json.Unmarshal(f.Data, &m))
	return m
}

func (f outFrame) stats(t *testing.T) Stats {
	t.Helper()
	var s Stats
	require.NoError(t, json.Unmarshal(f.Data, &s))
	return s
}

func (f outFrame) history(t *testing.T) []Message {
	t.Helper()
	var ms []Message
	require.NoError(t, json.Unmarshal(f.Data, &ms))
	return ms
}

// drain returns every frame queued on c without blocking.
func drain(t *testing.T, c *Client) []outFrame {
	t.Helper()
	var frames []outFrame
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return frames
			}
			var f outFrame
			require.NoError(t, json.Unmarshal(payload, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func frameTypes(frames []outFrame) []string {
	types := make([]string, 0, len(frames))
	for _, f := range frames {
		types = append(types, f.Type)
	}
	return types
}

func seed(t *testing.T, log *memLog, author string, contents ...string) {
	t.Helper()
	for _, c := range contents {
		_, err := log.Append(context.Background(), NewMessage{
			Username:   "seed",
			Content:    c,
			Type:       TypeChat,
			Color:      DefaultColor,
			AuthorUUID: author,
		})
		require.NoError(t, err)
	}
}

// stalledHistory snapshots history, then blocks until release is closed, so
// a test can store messages while a connect is still loading.
type stalledHistory struct {
	*memLog
	entered chan struct{}
	release chan struct{}
}

func (s *stalledHistory) RecentHistory(ctx context.Context, limit int) ([]Message, error) {
	rows, err := s.memLog.RecentHistory(ctx, limit)
	close(s.entered)
	<-s.release
	return rows, err
}
