package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SignInMessage struct {
	// Identifier is a username or a confirmed email address.
	Identifier string         `json:"identifier"`
	Password   string         `json:"password"`
	Meta       map[string]any `json:"meta"`
	OnResponse func(resp *SignInResponse)
}

func (e SignInMessage) Type() string { return "account.sign_in" }

type SignInResponse struct {
	User    *User
	Token   string
	Success bool
}

// SignInHandler checks password credentials and mints a bearer token.
// A wrong password and an unknown identifier produce the same error;
// the only enumeration exception is an identifier matching an
// unconfirmed address, which the account owner already knows about.
type SignInHandler struct {
	repo     RepositoryManager
	tokens   TokenAuthority
	activity ActivitySink
}

func NewSignInHandler(repo RepositoryManager, tokens TokenAuthority, sink ActivitySink) *SignInHandler {
	return &SignInHandler{
		repo:     repo,
		tokens:   tokens,
		activity: normalizeActivitySink(sink),
	}
}

func (h *SignInHandler) Execute(ctx context.Context, event SignInMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during sign in",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignInHandler) execute(ctx context.Context, event SignInMessage) error {
	resp := &SignInResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	var token string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().FindBySignInIdentifierTx(ctx, tx, event.Identifier, UserWithRelations())
		if err != nil {
			if !repository.IsRecordNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
			}
			if _, pendErr := h.repo.Users().FindByPendingEmailTx(ctx, tx, event.Identifier); pendErr == nil {
				return ErrEmailNotValidated
			}
			return ErrInvalidCredentials
		}

		if err := ComparePasswordAndHash(event.Password, user.PasswordHash); err != nil {
			h.recordFailure(ctx, user)
			return ErrInvalidCredentials
		}

		switch user.Status {
		case UserStatusPending:
			return ErrEmailNotValidated
		case UserStatusSuspended:
			return ErrAccountNotActive
		}

		// a deleted account signs in so its owner can restore it

		token, err = h.tokens.GenerateTx(ctx, tx, user.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint bearer token")
		}

		return touchSessionTx(ctx, tx, h.repo, user, event.Meta)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "sign in transaction failed")
	}

	h.recordSuccess(ctx, user)

	resp.User = user
	resp.Token = token
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// touchSessionTx stamps loginAt on the user's session and merges any
// client supplied meta. Every path that authenticates a user goes
// through here: password sign in, recovery token redemption, and email
// confirmation. The session row is created on demand for accounts that
// predate it.
func touchSessionTx(ctx context.Context, tx bun.IDB, repo RepositoryManager, user *User, meta map[string]any) error {
	session := user.Session
	if session == nil {
		session = &Session{}
		err := tx.NewSelect().
			Model(session).
			Where("?TableAlias.user_id = ?", user.ID).
			Limit(1).
			Scan(ctx)
		if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session")
		}
		if err != nil {
			session = &Session{ID: uuid.New(), UserID: user.ID}
			created, err := repo.Sessions().CreateTx(ctx, tx, session)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session")
			}
			session = created
		}
		user.Session = session
	}

	now := time.Now()
	session.LoginAt = &now
	if len(meta) > 0 {
		if session.Meta == nil {
			session.Meta = map[string]any{}
		}
		for k, v := range meta {
			session.Meta[k] = v
		}
	}

	_, err := tx.NewUpdate().
		Model(session).
		Column("login_at", "meta").
		Where("?TableAlias.id = ?", session.ID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update session")
	}
	return nil
}

func (h *SignInHandler) recordSuccess(ctx context.Context, user *User) {
	_ = h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventSignInSuccess,
		Actor:      ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:     user.ID.String(),
		OccurredAt: time.Now(),
	})
}

func (h *SignInHandler) recordFailure(ctx context.Context, user *User) {
	_ = h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventSignInFailure,
		Actor:      ActorRef{Type: "anonymous"},
		UserID:     user.ID.String(),
		OccurredAt: time.Now(),
	})
}
