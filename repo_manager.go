package accounts

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	AuthTokens() AuthTokens
	Profiles() repository.Repository[*Profile]
	Sessions() repository.Repository[*Session]
	MailRequests() MailRequests
	MailRequestMessages() repository.Repository[*MailRequestMessage]
}

func NewProfilesRepository(db *bun.DB) repository.Repository[*Profile] {
	return repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})
}

func NewSessionsRepository(db *bun.DB) repository.Repository[*Session] {
	return repository.NewRepository[*Session](db, repository.ModelHandlers[*Session]{
		NewRecord: func() *Session { return &Session{} },
		GetID: func(s *Session) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Session, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})
}

type mngr struct {
	db           *bun.DB
	users        Users
	authTokens   AuthTokens
	profiles     repository.Repository[*Profile]
	sessions     repository.Repository[*Session]
	mailRequests MailRequests
	mailMessages repository.Repository[*MailRequestMessage]
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:           db,
		users:        NewUsersRepository(db),
		authTokens:   NewAuthTokensRepository(db),
		profiles:     NewProfilesRepository(db),
		sessions:     NewSessionsRepository(db),
		mailRequests: NewMailRequestsRepository(db),
		mailMessages: NewMailRequestMessagesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.authTokens == nil {
		return errors.New("repository authTokens should be initialized")
	}

	if m.profiles == nil {
		return errors.New("repository profiles should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.mailRequests == nil {
		return errors.New("repository mailRequests should be initialized")
	}

	if m.mailMessages == nil {
		return errors.New("repository mailRequestMessages should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) AuthTokens() AuthTokens {
	return m.authTokens
}

func (m mngr) Profiles() repository.Repository[*Profile] {
	return m.profiles
}

func (m mngr) Sessions() repository.Repository[*Session] {
	return m.sessions
}

func (m mngr) MailRequests() MailRequests {
	return m.mailRequests
}

func (m mngr) MailRequestMessages() repository.Repository[*MailRequestMessage] {
	return m.mailMessages
}
