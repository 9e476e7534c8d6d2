package accounts

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthTokens stores issued bearer credential hashes. Every lookup and
// delete is by hash, plaintext tokens never reach this layer.
type AuthTokens interface {
	repository.Repository[*AuthToken]

	Issue(ctx context.Context, userID uuid.UUID, tokenHash string) (*AuthToken, error)
	IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenHash string) (*AuthToken, error)
	FindByHash(ctx context.Context, tokenHash string) (*AuthToken, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteByHashTx(ctx context.Context, tx bun.IDB, tokenHash string) error
	DeleteForUser(ctx context.Context, userID uuid.UUID, exceptHashes ...string) error
	DeleteForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, exceptHashes ...string) error
}

type authTokens struct {
	repository.Repository[*AuthToken]
	db *bun.DB
}

var _ AuthTokens = (*authTokens)(nil)

func NewAuthTokensRepository(db *bun.DB) AuthTokens {
	repo := repository.NewRepository[*AuthToken](db, repository.ModelHandlers[*AuthToken]{
		NewRecord: func() *AuthToken { return &AuthToken{} },
		GetID: func(t *AuthToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *AuthToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token_hash"
		},
	})

	return &authTokens{
		Repository: repo,
		db:         db,
	}
}

func (a *authTokens) Issue(ctx context.Context, userID uuid.UUID, tokenHash string) (*AuthToken, error) {
	return a.IssueTx(ctx, a.db, userID, tokenHash)
}

func (a *authTokens) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenHash string) (*AuthToken, error) {
	record := &AuthToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
	}
	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *authTokens) FindByHash(ctx context.Context, tokenHash string) (*AuthToken, error) {
	if tokenHash == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &AuthToken{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", tokenHash).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *authTokens) DeleteByHash(ctx context.Context, tokenHash string) error {
	return a.DeleteByHashTx(ctx, a.db, tokenHash)
}

func (a *authTokens) DeleteForUser(ctx context.Context, userID uuid.UUID, exceptHashes ...string) error {
	return a.DeleteForUserTx(ctx, a.db, userID, exceptHashes...)
}

// DeleteByHashTx revokes a single credential. Deleting an already
// revoked hash is a no-op, sign out stays idempotent.
func (a *authTokens) DeleteByHashTx(ctx context.Context, tx bun.IDB, tokenHash string) error {
	_, err := tx.NewDelete().
		Model((*AuthToken)(nil)).
		Where("?TableAlias.token_hash = ?", tokenHash).
		Exec(ctx)
	return err
}

// DeleteForUserTx revokes every credential a user holds, optionally
// sparing the hashes the caller wants to keep alive, typically the
// session performing the mutation.
func (a *authTokens) DeleteForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, exceptHashes ...string) error {
	q := tx.NewDelete().
		Model((*AuthToken)(nil)).
		Where("?TableAlias.user_id = ?", userID)

	if len(exceptHashes) > 0 {
		q = q.Where("?TableAlias.token_hash NOT IN (?)", bun.In(exceptHashes))
	}

	_, err := q.Exec(ctx)
	return err
}
