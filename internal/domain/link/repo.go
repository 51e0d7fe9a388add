package link

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the keyed-collection adapter the conversational flow and the
// broadcast sender run against.
//
// FindByAccount returns records in (linked_at, id) ascending order. The
// order is stable across repeated calls over an unchanged record set, which
// is what makes "select item #N" mean the same record on listing and on
// confirmation.
type Repository interface {
	FindByAccount(ctx context.Context, accountID string) ([]*LinkRecord, error)
	FindByToken(ctx context.Context, token string) (*LinkRecord, error)
	ListByToken(ctx context.Context, token string) ([]*LinkRecord, error)
	Insert(ctx context.Context, rec *LinkRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
}
