// Package link persists the association between external messaging accounts
// and registration tokens. One account may link several patients, and one
// token may be linked by several accounts.
package link

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no link record matches a lookup.
	ErrNotFound = errors.New("link: not found")
	// ErrConflict is returned when an identical (account, token) pair is
	// already linked. Callers treat it as idempotent success.
	ErrConflict = errors.New("link: already linked")
)

// LinkRecord maps to the linked_patients table.
type LinkRecord struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"account_id"`
	Token     string    `db:"token" json:"token"`
	LinkedAt  time.Time `db:"linked_at" json:"linked_at"`
}
