package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitechat/livechat/internal/auth"
	myMiddleware "github.com/sitechat/livechat/internal/middleware"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*User{}}
}

func (m *memStore) CreateUser(_ context.Context, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return nil, errors.New("duplicate username")
	}
	u.ID = len(m.users) + 1
	m.users[u.Username] = u
	return u, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func newTestService(t *testing.T) (*Service, *auth.Service) {
	t.Helper()
	tokens := auth.NewService("test-secret", time.Hour)
	svc := NewService(newMemStore(), tokens)

	_, err := svc.Create(context.Background(), "root", "hunter2", true)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "guest", "guest", false)
	require.NoError(t, err)
	return svc, tokens
}

func TestService_CreateHashesPassword(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, auth.NewService("s", time.Hour))

	u, err := svc.Create(context.Background(), "  root ", "hunter2", true)
	require.NoError(t, err)
	assert.Equal(t, "root", u.Username)
	assert.NotEqual(t, "hunter2", u.Password)

	_, err = svc.Create(context.Background(), "", "pw", false)
	assert.Error(t, err)
}

func TestService_LoginIssuesVerifiableCredential(t *testing.T) {
	svc, tokens := newTestService(t)

	res, err := svc.Login(context.Background(), &LoginRequest{Username: "root", Password: "hunter2"})
	require.NoError(t, err)
	assert.True(t, res.Admin)
	assert.True(t, tokens.IsAdmin(res.AccessToken))

	res, err = svc.Login(context.Background(), &LoginRequest{Username: "guest", Password: "guest"})
	require.NoError(t, err)
	assert.False(t, tokens.IsAdmin(res.AccessToken))
}

func TestService_LoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), &LoginRequest{Username: "root", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), &LoginRequest{Username: "nobody", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHandler_Login(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"ok", `{"username":"root","password":"hunter2"}`, http.StatusOK},
		{"wrong password", `{"username":"root","password":"nope"}`, http.StatusUnauthorized},
		{"bad body", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			h.Login(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				var res LoginResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
				assert.NotEmpty(t, res.AccessToken)
				assert.Equal(t, "root", res.Username)
			}
		})
	}
}

func TestHandler_SessionReadsContext(t *testing.T) {
	svc, tokens := newTestService(t)
	h := NewHandler(svc)
	token, _, err := tokens.Issue(1, "root", true)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	myMiddleware.NewAuthMiddleware(tokens).Handle(http.HandlerFunc(h.Session)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"root","admin":true}`, rec.Body.String())
}
