package patient

import "context"

// PatientRepository stores one row per issued token.
type PatientRepository interface {
	Insert(ctx context.Context, p *Patient) error
}

// IssuedIDRepository is a set-by-key store over the hospital-side patient id.
type IssuedIDRepository interface {
	// Get returns ErrNotIssued when the patient id has no issued token.
	Get(ctx context.Context, patientID string) (*IssuedID, error)
	// Set inserts or replaces the row for its patient id.
	Set(ctx context.Context, rec *IssuedID) error
}
