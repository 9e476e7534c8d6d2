package accounts_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const testPassword = "sup3r-sekret-pass"

var (
	hashOnce     sync.Once
	sharedHash   string
	userSequence int64
)

// testPasswordHash is computed once per process; the bcrypt work factor
// makes hashing per seeded user prohibitively slow.
func testPasswordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := accounts.HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		sharedHash = h
	})
	return sharedHash
}

func setupTestDB(t *testing.T) (*bun.DB, accounts.RepositoryManager) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []any{
		(*accounts.User)(nil),
		(*accounts.Profile)(nil),
		(*accounts.Session)(nil),
		(*accounts.AuthToken)(nil),
		(*accounts.MailRequest)(nil),
		(*accounts.MailRequestMessage)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db, accounts.NewRepositoryManager(db)
}

func withPendingEmail(email, token string) func(*accounts.User) {
	return func(u *accounts.User) {
		u.PendingEmail = email
		u.EmailToken = token
	}
}

func withRecoveryToken(token string) func(*accounts.User) {
	return func(u *accounts.User) {
		u.AuthenticationToken = token
	}
}

func withRecoverRequestedAt(at time.Time) func(*accounts.User) {
	return func(u *accounts.User) {
		u.RecoverRequestedAt = &at
	}
}

func withEmail(email string) func(*accounts.User) {
	return func(u *accounts.User) {
		u.Email = email
	}
}

func withRole(role accounts.UserRole) func(*accounts.User) {
	return func(u *accounts.User) {
		u.Role = role
	}
}

// seedUser inserts a user with its profile and session rows, the shape
// registration produces. Non pending users get a confirmed email.
func seedUser(t *testing.T, repo accounts.RepositoryManager, status accounts.UserStatus, opts ...func(*accounts.User)) *accounts.User {
	t.Helper()

	n := atomic.AddInt64(&userSequence, 1)
	user := &accounts.User{
		ID:           uuid.New(),
		Username:     fmt.Sprintf("user-%d", n),
		PasswordHash: testPasswordHash(t),
		Role:         accounts.RoleMember,
		Status:       status,
	}

	if status != accounts.UserStatusPending {
		user.Email = fmt.Sprintf("user-%d@example.com", n)
	}
	if status == accounts.UserStatusDeleted {
		now := time.Now()
		user.DeletedAt = &now
	}

	for _, opt := range opts {
		opt(user)
	}

	ctx := context.Background()
	created, err := repo.Users().Register(ctx, user)
	require.NoError(t, err)

	profile := &accounts.Profile{ID: uuid.New(), UserID: created.ID}
	profile, err = repo.Profiles().Create(ctx, profile)
	require.NoError(t, err)
	created.Profile = profile

	session := &accounts.Session{ID: uuid.New(), UserID: created.ID}
	session, err = repo.Sessions().Create(ctx, session)
	require.NoError(t, err)
	created.Session = session

	return created
}
