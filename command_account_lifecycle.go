package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeleteAccountMessage struct {
	UserID     uuid.UUID `json:"-"`
	OnResponse func(resp *AccountLifecycleResponse)
}

func (e DeleteAccountMessage) Type() string { return "account.delete" }

type RestoreAccountMessage struct {
	UserID uuid.UUID `json:"-"`
	// CurrentToken survives the restore so the session that asked for
	// it stays signed in.
	CurrentToken string `json:"-"`
	OnResponse   func(resp *AccountLifecycleResponse)
}

func (e RestoreAccountMessage) Type() string { return "account.restore" }

type AccountLifecycleResponse struct {
	User    *User
	Success bool
}

// AccountLifecycleHandler performs the self service status
// transitions: an owner soft deletes their account and, having signed
// in while deleted, brings it back. Deletion is reversible, so bearer
// sessions stay live and the data stays put until an admin decides
// otherwise; only the administrative delete revokes and notifies.
type AccountLifecycleHandler struct {
	repo         RepositoryManager
	stateMachine UserStateMachine
}

func NewAccountLifecycleHandler(repo RepositoryManager, sm UserStateMachine) *AccountLifecycleHandler {
	if sm == nil {
		sm = NewUserStateMachine(repo.Users())
	}
	return &AccountLifecycleHandler{
		repo:         repo,
		stateMachine: sm,
	}
}

func (h *AccountLifecycleHandler) ExecuteDelete(ctx context.Context, event DeleteAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account deletion",
		)
	default:
		return h.executeDelete(ctx, event)
	}
}

func (h *AccountLifecycleHandler) executeDelete(ctx context.Context, event DeleteAccountMessage) error {
	resp := &AccountLifecycleResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetWithRelationsTx(ctx, tx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		actor := ActorRef{ID: user.ID.String(), Type: "user"}
		if _, err := h.stateMachine.Transition(ctx, actor, user, UserStatusDeleted,
			WithTransitionDB(tx),
			WithTransitionReason("self service deletion"),
		); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account deletion transaction failed")
	}

	resp.User = user
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *AccountLifecycleHandler) ExecuteRestore(ctx context.Context, event RestoreAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account restore",
		)
	default:
		return h.executeRestore(ctx, event)
	}
}

func (h *AccountLifecycleHandler) executeRestore(ctx context.Context, event RestoreAccountMessage) error {
	resp := &AccountLifecycleResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetWithRelationsTx(ctx, tx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		if !user.IsDeleted() {
			return ErrInvalidTransition.WithMetadata(map[string]any{
				"from": user.Status,
				"to":   UserStatusActive,
			})
		}

		actor := ActorRef{ID: user.ID.String(), Type: "user"}
		if _, err := h.stateMachine.Transition(ctx, actor, user, UserStatusActive,
			WithTransitionDB(tx),
			WithTransitionReason("self service restore"),
		); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account restore transaction failed")
	}

	resp.User = user
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
