package accounts

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MailRequests stores contact threads. Guests address their thread by
// its token, admins by id.
type MailRequests interface {
	repository.Repository[*MailRequest]

	FindByToken(ctx context.Context, token string) (*MailRequest, error)
	FindByTokenTx(ctx context.Context, tx bun.IDB, token string) (*MailRequest, error)
	ListByStatus(ctx context.Context, status MailRequestStatus) ([]*MailRequest, error)
}

type mailRequests struct {
	repository.Repository[*MailRequest]
	db *bun.DB
}

var _ MailRequests = (*mailRequests)(nil)

func NewMailRequestsRepository(db *bun.DB) MailRequests {
	repo := repository.NewRepository[*MailRequest](db, repository.ModelHandlers[*MailRequest]{
		NewRecord: func() *MailRequest { return &MailRequest{} },
		GetID: func(r *MailRequest) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *MailRequest, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &mailRequests{
		Repository: repo,
		db:         db,
	}
}

func (m *mailRequests) FindByToken(ctx context.Context, token string) (*MailRequest, error) {
	return m.FindByTokenTx(ctx, m.db, token)
}

func (m *mailRequests) FindByTokenTx(ctx context.Context, tx bun.IDB, token string) (*MailRequest, error) {
	if token == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &MailRequest{}
	err := tx.NewSelect().
		Model(record).
		Relation("Messages").
		Where("?TableAlias.token = ?", token).
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

func (m *mailRequests) ListByStatus(ctx context.Context, status MailRequestStatus) ([]*MailRequest, error) {
	var records []*MailRequest
	err := m.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", status).
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func NewMailRequestMessagesRepository(db *bun.DB) repository.Repository[*MailRequestMessage] {
	return repository.NewRepository[*MailRequestMessage](db, repository.ModelHandlers[*MailRequestMessage]{
		NewRecord: func() *MailRequestMessage { return &MailRequestMessage{} },
		GetID: func(r *MailRequestMessage) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *MailRequestMessage, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})
}
