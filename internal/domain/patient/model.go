// Package patient handles the record-side of the system: intake of
// pre-encrypted patient rows and reception-desk token issuance. Only opaque
// encrypted tokens are stored; no plaintext identifier reaches a table.
package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyIssued is returned when a token was already issued for a
	// patient id and the caller did not ask for a reissue.
	ErrAlreadyIssued = errors.New("patient: already issued")
	// ErrNotIssued is returned when a patient id has no issued token.
	ErrNotIssued = errors.New("patient: not issued")
)

// Patient maps to the patients table: one row per issued token.
type Patient struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Token        string    `db:"token" json:"token"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}

// IssuedID maps to the registered_ids table, keyed by the hospital-side
// patient id so a reissue replaces the previous token.
type IssuedID struct {
	PatientID    string    `db:"patient_id" json:"patient_id"`
	Token        string    `db:"token" json:"token"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}
