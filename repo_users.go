package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	GetWithRelations(ctx context.Context, id uuid.UUID) (*User, error)
	GetWithRelationsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	FindBySignInIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	FindBySignInIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	FindByPendingEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByEmailTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)
	FindByRecoveryTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)

	UpdateColumnsTx(ctx context.Context, tx bun.IDB, record *User, columns ...string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) (*User, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

// UserWithRelations preloads the profile and session rows.
func UserWithRelations() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Relation("Profile").Relation("Session")
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	return a.CreateTx(ctx, tx, user)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	created, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		return nil, TranslateUniqueViolation(err)
	}
	return created, nil
}

func (a *users) GetWithRelations(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetWithRelationsTx(ctx, a.db, id)
}

func (a *users) GetWithRelationsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	return a.findByColumnTx(ctx, tx, "id", id.String(), UserWithRelations())
}

// FindBySignInIdentifier resolves the value a user types into the sign
// in form: their username or their confirmed email address.
func (a *users) FindBySignInIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.FindBySignInIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) FindBySignInIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	for _, column := range []string{"username", "email"} {
		record, err := a.findByColumnTx(ctx, tx, column, identifier, criteria...)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}
		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) FindByPendingEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.findByColumnTx(ctx, tx, "pending_email", email)
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.findByColumnTx(ctx, tx, "email", email)
}

func (a *users) FindByEmailTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.findByColumnTx(ctx, tx, "email_token", token)
}

func (a *users) FindByRecoveryTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.findByColumnTx(ctx, tx, "authentication_token", token)
}

func (a *users) findByColumnTx(ctx context.Context, tx bun.IDB, column, value string, criteria ...repository.SelectCriteria) (*User, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"column": column})
	}

	record := &User{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"column": column})
		}
		return nil, err
	}

	return record, nil
}

// UpdateColumnsTx persists exactly the named columns of record. The
// generic update skips zero values, which makes clearing a token or a
// pending email impossible through it; listing columns explicitly
// writes empty strings and NULLs too.
func (a *users) UpdateColumnsTx(ctx context.Context, tx bun.IDB, record *User, columns ...string) error {
	if record == nil || record.ID == uuid.Nil {
		return repository.NewRecordNotFound()
	}

	now := time.Now()
	record.UpdatedAt = &now
	columns = append(columns, "updated_at")

	res, err := tx.NewUpdate().
		Model(record).
		Column(columns...).
		Where("?TableAlias.id = ?", record.ID).
		Exec(ctx)
	if err != nil {
		return TranslateUniqueViolation(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": record.ID.String()})
	}

	return nil
}

func (a *users) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) (*User, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status)
}

// UpdateStatusTx writes the status column and keeps deleted_at in
// lockstep: set on entering deleted, cleared on leaving it.
func (a *users) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus) (*User, error) {
	now := time.Now()

	q := tx.NewUpdate().
		Model((*User)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", now)

	if status == UserStatusDeleted {
		q = q.Set("deleted_at = ?", now)
	} else {
		q = q.Set("deleted_at = NULL")
	}

	res, err := q.Where("?TableAlias.id = ?", id).Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return a.findByColumnTx(ctx, tx, "id", id.String())
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleMember
	}

	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
