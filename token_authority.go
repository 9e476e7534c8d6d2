package accounts

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenAuthority mints and checks opaque bearer credentials. The
// plaintext token exists only in the mint response and in the client's
// hands; storage and comparison work on its digest. Revocation takes
// effect on the next Verify, there is no cached validity.
type TokenAuthority interface {
	Generate(ctx context.Context, userID uuid.UUID) (string, error)
	GenerateTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (string, error)
	Verify(ctx context.Context, token string) (*User, error)
	Revoke(ctx context.Context, token string) error
	RevokeTx(ctx context.Context, tx bun.IDB, token string) error
	RevokeAll(ctx context.Context, userID uuid.UUID, exceptTokens ...string) error
	RevokeAllTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, exceptTokens ...string) error
}

type tokenAuthority struct {
	users  Users
	tokens AuthTokens
}

// NewTokenAuthority builds the default repository backed authority.
func NewTokenAuthority(users Users, tokens AuthTokens) TokenAuthority {
	return &tokenAuthority{
		users:  users,
		tokens: tokens,
	}
}

func (t *tokenAuthority) Generate(ctx context.Context, userID uuid.UUID) (string, error) {
	token := NewToken()
	if _, err := t.tokens.Issue(ctx, userID, HashToken(token)); err != nil {
		return "", err
	}
	return token, nil
}

// GenerateTx mints inside the caller's transaction so the credential
// only exists if the surrounding mutation commits.
func (t *tokenAuthority) GenerateTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (string, error) {
	token := NewToken()
	if _, err := t.tokens.IssueTx(ctx, tx, userID, HashToken(token)); err != nil {
		return "", err
	}
	return token, nil
}

// Verify resolves a presented token to its user, with profile and
// session preloaded. Unknown or revoked tokens come back as
// ErrInvalidAPIToken regardless of why they are unknown.
func (t *tokenAuthority) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidAPIToken
	}

	record, err := t.tokens.FindByHash(ctx, HashToken(token))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidAPIToken
		}
		return nil, err
	}

	user, err := t.users.GetWithRelations(ctx, record.UserID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidAPIToken
		}
		return nil, err
	}

	return user, nil
}

func (t *tokenAuthority) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return t.tokens.DeleteByHash(ctx, HashToken(token))
}

func (t *tokenAuthority) RevokeTx(ctx context.Context, tx bun.IDB, token string) error {
	if token == "" {
		return nil
	}
	return t.tokens.DeleteByHashTx(ctx, tx, HashToken(token))
}

func (t *tokenAuthority) RevokeAll(ctx context.Context, userID uuid.UUID, exceptTokens ...string) error {
	return t.tokens.DeleteForUser(ctx, userID, hashExcept(exceptTokens)...)
}

// RevokeAllTx removes every credential the user holds except the
// plaintext tokens listed, so a password change can keep the session
// that performed it alive while logging out everything else.
func (t *tokenAuthority) RevokeAllTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, exceptTokens ...string) error {
	return t.tokens.DeleteForUserTx(ctx, tx, userID, hashExcept(exceptTokens)...)
}

func hashExcept(tokens []string) []string {
	hashes := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token != "" {
			hashes = append(hashes, HashToken(token))
		}
	}
	return hashes
}
