package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MailRequestType categorizes a support thread
type MailRequestType string

const (
	// MailRequestAccountSuspension is opened to contest a suspension
	MailRequestAccountSuspension MailRequestType = "accountSuspension"
	// MailRequestOther is any other contact request
	MailRequestOther MailRequestType = "other"
)

// IsValid checks if the type is one of the predefined types
func (t MailRequestType) IsValid() bool {
	switch t {
	case MailRequestAccountSuspension, MailRequestOther:
		return true
	default:
		return false
	}
}

// MailRequestStatus marks which side the thread is waiting on
type MailRequestStatus string

const (
	MailRequestWaitingFromUser  MailRequestStatus = "waitingFromUser"
	MailRequestWaitingFromAdmin MailRequestStatus = "waitingFromAdmin"
	MailRequestResolved         MailRequestStatus = "resolved"
)

// MailRequest is a contact thread between a guest or user and the
// administrators. Append-only: messages are added, never edited.
type MailRequest struct {
	bun.BaseModel `bun:"table:mail_requests,alias:mrq"`

	ID      uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Subject string    `bun:"subject,notnull" json:"subject,omitempty"`

	// Token lets guests follow the thread without an account
	Token string `bun:"token,notnull,unique" json:"-"`

	Email  string            `bun:"email" json:"email,omitempty"`
	Type   MailRequestType   `bun:"request_type,notnull" json:"type,omitempty"`
	Status MailRequestStatus `bun:"status,notnull" json:"status,omitempty"`

	UserID   *uuid.UUID `bun:"user_id,nullzero,type:uuid" json:"user_id,omitempty"`
	User     *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Username string     `bun:"username" json:"username,omitempty"`

	Messages []*MailRequestMessage `bun:"rel:has-many,join:id=request_id" json:"messages,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// MailRequestMessage is a single entry in a contact thread
type MailRequestMessage struct {
	bun.BaseModel `bun:"table:mail_request_messages,alias:mrm"`

	ID        uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	RequestID uuid.UUID `bun:"request_id,notnull,type:uuid" json:"request_id,omitempty"`
	Content   string    `bun:"content,notnull" json:"content,omitempty"`

	FromUserID *uuid.UUID `bun:"from_user_id,nullzero,type:uuid" json:"from_user_id,omitempty"`
	FromName   string     `bun:"from_name" json:"from_name,omitempty"`
	ToUserID   *uuid.UUID `bun:"to_user_id,nullzero,type:uuid" json:"to_user_id,omitempty"`
	ToName     string     `bun:"to_name" json:"to_name,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
