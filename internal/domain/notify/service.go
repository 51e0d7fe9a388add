// Package notify delivers call-in messages to every messaging account linked
// to a patient's registration token.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hiro1966/line-official-prottype1/internal/domain/link"
	"github.com/hiro1966/line-official-prottype1/internal/domain/token"
)

// ErrNotLinked is returned when a token has no linked account.
var ErrNotLinked = errors.New("notify: no linked account")

// Pusher is the unsolicited-message side of the messaging transport.
type Pusher interface {
	Push(ctx context.Context, accountID, text string) error
}

type Service struct {
	links   link.Repository
	pusher  Pusher
	tmpl    string
	logger  zerolog.Logger
}

// NewService builds the broadcast sender. tmpl is the call-in message
// template with {patientName} and {roomNumber} placeholders.
func NewService(links link.Repository, pusher Pusher, tmpl string, logger zerolog.Logger) *Service {
	return &Service{links: links, pusher: pusher, tmpl: tmpl, logger: logger}
}

// RenderTemplate fills the placeholders of tmpl that have a non-empty value.
func RenderTemplate(tmpl, patientName, roomNumber string) string {
	msg := tmpl
	if patientName != "" {
		msg = strings.Replace(msg, "{patientName}", patientName, 1)
	}
	if roomNumber != "" {
		msg = strings.Replace(msg, "{roomNumber}", roomNumber, 1)
	}
	return msg
}

// Send pushes message to every account linked to tok. When message is empty
// and roomNumber is given, the configured template is rendered with the
// patient name decoded from the token. Two accounts linked to the same token
// both receive the message. Individual delivery failures are logged and do
// not abort the remaining deliveries; the count of successful sends is
// returned.
func (s *Service) Send(ctx context.Context, tok, message, roomNumber string) (int, error) {
	if message == "" {
		if roomNumber == "" {
			return 0, fmt.Errorf("message or roomNumber is required")
		}
		p, err := token.Decode(tok)
		if err != nil {
			return 0, err
		}
		message = RenderTemplate(s.tmpl, p.PatientName, roomNumber)
	}

	records, err := s.links.ListByToken(ctx, tok)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, ErrNotLinked
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for _, rec := range records {
		rec := rec
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.pusher.Push(ctx, rec.AccountID, message); err != nil {
				s.logger.Error().Err(err).Str("account_id", rec.AccountID).Msg("push failed")
				return
			}
			mu.Lock()
			sent++
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.logger.Info().Int("sent", sent).Int("linked", len(records)).Msg("call-in message delivered")
	return sent, nil
}
