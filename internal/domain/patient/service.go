package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hiro1966/line-official-prottype1/internal/domain/token"
)

// Issuance is the result of issuing a registration token at the reception
// desk.
type Issuance struct {
	PatientID   string
	PatientName string
	Token       string
}

type Service struct {
	patients PatientRepository
	issued   IssuedIDRepository

	now func() time.Time
}

func NewService(patients PatientRepository, issued IssuedIDRepository) *Service {
	return &Service{patients: patients, issued: issued, now: time.Now}
}

// RegisterEncrypted stores a pre-encrypted token produced by the hospital
// record system. The token is opaque here; it is not decoded.
func (s *Service) RegisterEncrypted(ctx context.Context, tok string) (*Patient, error) {
	if tok == "" {
		return nil, fmt.Errorf("encryptString is required")
	}
	p := &Patient{Token: tok}
	if err := s.patients.Insert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Issue encodes a fresh registration token for a patient. When the patient id
// already has an issued token and forceReissue is false, ErrAlreadyIssued is
// returned so the caller can ask for confirmation first. A reissue replaces
// the previous issued-id row and derives a new key from the new timestamp.
func (s *Service) Issue(ctx context.Context, patientID, patientName string, forceReissue bool) (*Issuance, error) {
	if patientID == "" || patientName == "" {
		return nil, fmt.Errorf("patient id and name are required")
	}

	if _, err := s.issued.Get(ctx, patientID); err == nil {
		if !forceReissue {
			return nil, ErrAlreadyIssued
		}
	} else if !errors.Is(err, ErrNotIssued) {
		return nil, err
	}

	issuedAt := s.now().UTC().Format(token.IssuedAtLayout)
	tok, err := token.Encode(token.RegistrationPayload{
		PatientID:   patientID,
		PatientName: patientName,
		IssuedAt:    issuedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := s.issued.Set(ctx, &IssuedID{PatientID: patientID, Token: tok}); err != nil {
		return nil, err
	}
	if _, err := s.RegisterEncrypted(ctx, tok); err != nil {
		return nil, err
	}

	return &Issuance{PatientID: patientID, PatientName: patientName, Token: tok}, nil
}
