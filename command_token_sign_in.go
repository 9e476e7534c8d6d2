package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type TokenSignInMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *TokenSignInResponse)
}

func (e TokenSignInMessage) Type() string { return "account.token_sign_in" }

type TokenSignInResponse struct {
	User    *User
	Token   string
	Success bool
}

// TokenSignInHandler redeems a password recovery token for a signed in
// session. The recovery token is consumed whether or not the caller
// goes on to change their password; a second redemption fails.
type TokenSignInHandler struct {
	repo     RepositoryManager
	tokens   TokenAuthority
	activity ActivitySink
}

func NewTokenSignInHandler(repo RepositoryManager, tokens TokenAuthority, sink ActivitySink) *TokenSignInHandler {
	return &TokenSignInHandler{
		repo:     repo,
		tokens:   tokens,
		activity: normalizeActivitySink(sink),
	}
}

func (h *TokenSignInHandler) Execute(ctx context.Context, event TokenSignInMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during token sign in",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *TokenSignInHandler) execute(ctx context.Context, event TokenSignInMessage) error {
	resp := &TokenSignInResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrInvalidToken
	}

	var user *User
	var token string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().FindByRecoveryTokenTx(ctx, tx, event.Token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up recovery token")
		}

		if !user.IsActive() {
			return ErrAccountNotValidated
		}

		user.AuthenticationToken = ""
		if err := h.repo.Users().UpdateColumnsTx(ctx, tx, user, "authentication_token"); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume recovery token")
		}

		token, err = h.tokens.GenerateTx(ctx, tx, user.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint bearer token")
		}

		return touchSessionTx(ctx, tx, h.repo, user, nil)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "token sign in transaction failed")
	}

	_ = h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventTokenSignIn,
		Actor:      ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:     user.ID.String(),
		OccurredAt: time.Now(),
	})

	resp.User = user
	resp.Token = token
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
