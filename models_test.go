package accounts_test

import (
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"member", "writer", "admin"} {
		role, ok := accounts.ParseRole(valid)
		assert.True(t, ok, valid)
		assert.Equal(t, accounts.UserRole(valid), role)
	}

	for _, invalid := range []string{"", "superuser", "Member", "ADMIN"} {
		_, ok := accounts.ParseRole(invalid)
		assert.False(t, ok, invalid)
	}
}

func TestGetAllRoles(t *testing.T) {
	assert.ElementsMatch(t, []accounts.UserRole{
		accounts.RoleMember,
		accounts.RoleWriter,
		accounts.RoleAdmin,
	}, accounts.GetAllRoles())
}

func TestUserStatusIsValid(t *testing.T) {
	for _, valid := range []accounts.UserStatus{
		accounts.UserStatusPending,
		accounts.UserStatusActive,
		accounts.UserStatusSuspended,
		accounts.UserStatusDeleted,
	} {
		assert.True(t, valid.IsValid(), string(valid))
	}

	assert.False(t, accounts.UserStatus("").IsValid())
	assert.False(t, accounts.UserStatus("archived").IsValid())
}

func TestEnsureStatusDefaultsToPending(t *testing.T) {
	user := &accounts.User{}
	user.EnsureStatus()
	assert.Equal(t, accounts.UserStatusPending, user.Status)

	user.Status = accounts.UserStatusActive
	user.EnsureStatus()
	assert.Equal(t, accounts.UserStatusActive, user.Status)
}

func TestUserStatusHelpers(t *testing.T) {
	user := &accounts.User{Status: accounts.UserStatusPending}
	assert.True(t, user.IsPending())
	assert.False(t, user.IsActive())

	user.Status = accounts.UserStatusSuspended
	assert.True(t, user.IsSuspended())

	user.Status = accounts.UserStatusDeleted
	assert.True(t, user.IsDeleted())
}

func TestUserIsAdmin(t *testing.T) {
	assert.False(t, (&accounts.User{Role: accounts.RoleMember}).IsAdmin())
	assert.False(t, (&accounts.User{Role: accounts.RoleWriter}).IsAdmin())
	assert.True(t, (&accounts.User{Role: accounts.RoleAdmin}).IsAdmin())
}

func TestHasPendingEmail(t *testing.T) {
	user := &accounts.User{}
	assert.False(t, user.HasPendingEmail())

	user.PendingEmail = "new@example.com"
	assert.False(t, user.HasPendingEmail(), "pending address without token is not confirmable")

	user.EmailToken = "tok"
	assert.True(t, user.HasPendingEmail())
}

func TestMailRequestTypeIsValid(t *testing.T) {
	assert.True(t, accounts.MailRequestAccountSuspension.IsValid())
	assert.True(t, accounts.MailRequestOther.IsValid())
	assert.False(t, accounts.MailRequestType("spam").IsValid())
	assert.False(t, accounts.MailRequestType("").IsValid())
}
