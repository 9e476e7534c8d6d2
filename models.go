package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole restricts what a user can access
type UserRole string

const (
	// RoleMember is the default role for self-registered accounts
	RoleMember UserRole = "member"
	// RoleWriter is a member that can publish content
	RoleWriter UserRole = "writer"
	// RoleAdmin can manage other accounts
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleMember, RoleWriter, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{RoleMember, RoleWriter, RoleAdmin}
}

// UserStatus is the lifecycle status of an account
type UserStatus string

const (
	// UserStatusPending is a new account waiting for email validation
	UserStatusPending UserStatus = "pending"
	// UserStatusActive is a validated, usable account
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended is an account locked by an administrator
	UserStatusSuspended UserStatus = "suspended"
	// UserStatusDeleted is a soft-deleted account; the user can still sign
	// in with their password and restore it
	UserStatusDeleted UserStatus = "deleted"
)

// IsValid checks if the status is one of the predefined statuses
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusPending, UserStatusActive, UserStatusSuspended, UserStatusDeleted:
		return true
	default:
		return false
	}
}

// User is the account aggregate root
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID       uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username string    `bun:"username,notnull,unique" json:"username,omitempty"`

	// PasswordHash is opaque, never compared by equality,
	// only through ComparePasswordAndHash
	PasswordHash string `bun:"password_hash,notnull" json:"-"`

	// Email is the confirmed contact address, unique among confirmed
	// addresses. Empty until the first pending email is confirmed.
	Email string `bun:"email,unique,nullzero" json:"email,omitempty"`

	// PendingEmail is an address submitted but not yet proven reachable.
	// Email only changes through confirmation of PendingEmail.
	PendingEmail string `bun:"pending_email" json:"pending_email,omitempty"`

	// EmailToken is the single-use token proving control of PendingEmail
	EmailToken string `bun:"email_token" json:"-"`

	// AuthenticationToken is the single-use password recovery token
	AuthenticationToken string `bun:"authentication_token" json:"-"`

	// RecoverRequestedAt drives the recovery request cooldown; it only
	// advances forward in time
	RecoverRequestedAt *time.Time `bun:"recover_password_requested_at,nullzero" json:"recover_password_requested_at,omitempty"`

	Role   UserRole   `bun:"user_role,notnull" json:"role,omitempty"`
	Status UserStatus `bun:"status,notnull" json:"status,omitempty"`

	Profile *Profile `bun:"rel:has-one,join:id=user_id" json:"profile,omitempty"`
	Session *Session `bun:"rel:has-one,join:id=user_id" json:"session,omitempty"`

	// DeletedAt is set iff Status is UserStatusDeleted
	DeletedAt *time.Time `bun:"deleted_at,nullzero" json:"deleted_at,omitempty"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus normalizes a missing status to pending, the initial state
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusPending
	}
}

// IsPending reports whether the account awaits email validation
func (u *User) IsPending() bool { return u.Status == UserStatusPending }

// IsActive reports whether the account is usable
func (u *User) IsActive() bool { return u.Status == UserStatusActive }

// IsSuspended reports whether the account is locked by an admin
func (u *User) IsSuspended() bool { return u.Status == UserStatusSuspended }

// IsDeleted reports whether the account is soft deleted
func (u *User) IsDeleted() bool { return u.Status == UserStatusDeleted }

// IsAdmin reports whether the account holds the admin role
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// HasPendingEmail reports whether an email confirmation is outstanding
func (u *User) HasPendingEmail() bool {
	return u.PendingEmail != "" && u.EmailToken != ""
}

// ProfileLink is a name/value pair shown on the public profile
type ProfileLink struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Profile holds contact and biographical data, owned 1:1 by its User.
// It is created in the same transaction as the User and never
// independently.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`

	ID     uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"-"`
	UserID uuid.UUID `bun:"user_id,notnull,unique,type:uuid" json:"-"`

	Firstname string     `bun:"firstname" json:"firstname,omitempty"`
	Lastname  string     `bun:"lastname" json:"lastname,omitempty"`
	Dob       *time.Time `bun:"dob,nullzero" json:"dob,omitempty"`

	Address string `bun:"address" json:"address,omitempty"`
	City    string `bun:"city" json:"city,omitempty"`
	State   string `bun:"state" json:"state,omitempty"`
	Zip     string `bun:"zip" json:"zip,omitempty"`
	Country string `bun:"country" json:"country,omitempty"`

	Phone string `bun:"phone" json:"phone,omitempty"`
	Email string `bun:"email" json:"email,omitempty"`

	Links []ProfileLink `bun:"links,type:jsonb" json:"links,omitempty"`

	// Avatar is the public (signed) URL, AvatarFile the storage path
	Avatar     string `bun:"avatar" json:"avatar,omitempty"`
	AvatarFile string `bun:"avatar_file" json:"-"`
}

// Session tracks the last login and client-supplied metadata, 1:1 with
// its User and co-created with it.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`

	ID     uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"-"`
	UserID uuid.UUID `bun:"user_id,notnull,unique,type:uuid" json:"-"`

	LoginAt *time.Time     `bun:"login_at,nullzero" json:"login_at,omitempty"`
	Meta    map[string]any `bun:"meta,type:jsonb" json:"meta,omitempty"`
}

// AuthToken is an issued bearer credential record. Only a hash of the
// opaque token is stored; the plaintext is returned once at mint time.
// A user may hold several concurrently (multi device).
type AuthToken struct {
	bun.BaseModel `bun:"table:auth_tokens,alias:tok"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID    uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	TokenHash string     `bun:"token_hash,notnull,unique" json:"-"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
