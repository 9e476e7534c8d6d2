package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UpdateSessionMetaMessage struct {
	UserID     uuid.UUID      `json:"-"`
	Meta       map[string]any `json:"meta"`
	OnResponse func(resp *UpdateSessionMetaResponse)
}

func (e UpdateSessionMetaMessage) Type() string { return "session.update_meta" }

type UpdateSessionMetaResponse struct {
	Session *Session
	Success bool
}

// UpdateSessionMetaHandler merges client supplied metadata into the
// session row. Keys the client sends win, keys it omits survive.
type UpdateSessionMetaHandler struct {
	repo RepositoryManager
}

func NewUpdateSessionMetaHandler(repo RepositoryManager) *UpdateSessionMetaHandler {
	return &UpdateSessionMetaHandler{repo: repo}
}

func (h *UpdateSessionMetaHandler) Execute(ctx context.Context, event UpdateSessionMetaMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during session update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateSessionMetaHandler) execute(ctx context.Context, event UpdateSessionMetaMessage) error {
	resp := &UpdateSessionMetaResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var session *Session

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetWithRelationsTx(ctx, tx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		session = user.Session
		if session == nil {
			session = &Session{ID: uuid.New(), UserID: user.ID}
			if session, err = h.repo.Sessions().CreateTx(ctx, tx, session); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session")
			}
		}

		if session.Meta == nil {
			session.Meta = map[string]any{}
		}
		for k, v := range event.Meta {
			session.Meta[k] = v
		}

		_, err = tx.NewUpdate().
			Model(session).
			Column("meta").
			Where("?TableAlias.id = ?", session.ID).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update session meta")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "session update transaction failed")
	}

	resp.Session = session
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
