package accounts_test

import (
	"context"
	"errors"
	"io"
	"sync"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockUsers stubs the status persistence the state machine drives.
// Embedding the interface satisfies the full surface; only the methods
// under test are implemented.
type MockUsers struct {
	accounts.Users
	mock.Mock
}

func (m *MockUsers) UpdateStatus(ctx context.Context, id uuid.UUID, status accounts.UserStatus) (*accounts.User, error) {
	args := m.Called(ctx, id, status)
	var user *accounts.User
	if v := args.Get(0); v != nil {
		user = v.(*accounts.User)
	}
	return user, args.Error(1)
}

func (m *MockUsers) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status accounts.UserStatus) (*accounts.User, error) {
	args := m.Called(ctx, tx, id, status)
	var user *accounts.User
	if v := args.Get(0); v != nil {
		user = v.(*accounts.User)
	}
	return user, args.Error(1)
}

// testConfig implements accounts.Config
type testConfig struct {
	dev      bool
	cooldown string
	frontend string
	admin    string
}

func (c testConfig) IsDevelopment() bool         { return c.dev }
func (c testConfig) GetRecoveryCooldown() string { return c.cooldown }
func (c testConfig) GetAdminEmail() string       { return c.admin }
func (c testConfig) GetFrontendURL() string {
	if c.frontend == "" {
		return "https://app.example.com"
	}
	return c.frontend
}

func devConfig() testConfig {
	return testConfig{dev: true, cooldown: "60m", admin: "admin@example.com"}
}

func prodConfig() testConfig {
	return testConfig{cooldown: "60m", admin: "admin@example.com"}
}

// capturingNotifier records every notification handed to it.
type capturingNotifier struct {
	mu   sync.Mutex
	sent []accounts.Notification
}

func (n *capturingNotifier) Send(_ context.Context, msg accounts.Notification) error {
	n.SendLater(msg)
	return nil
}

func (n *capturingNotifier) SendLater(msg accounts.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *capturingNotifier) byKind(kind accounts.NotificationKind) []accounts.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []accounts.Notification
	for _, msg := range n.sent {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

// capturingSink records activity events for assertions.
type capturingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (s *capturingSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *capturingSink) byType(t accounts.ActivityEventType) []accounts.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []accounts.ActivityEvent
	for _, event := range s.events {
		if event.EventType == t {
			out = append(out, event)
		}
	}
	return out
}

// memStorage is an in memory FileStorage double.
type memStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
	failPut bool
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}}
}

func (s *memStorage) MoveToSignedLocation(_ context.Context, src io.Reader, destName string) (string, string, error) {
	if s.failPut {
		return "", "", errors.New("storage unavailable")
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return "", "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[destName] = data
	return destName, "https://cdn.example.com/" + destName, nil
}

func (s *memStorage) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	s.deleted = append(s.deleted, path)
	return nil
}
