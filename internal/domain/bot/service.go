// Package bot drives the conversational linking flow over the chat webhook:
// registration-code intake, listing linked patients, and the numbered
// select-then-confirm unlink exchange. No session object exists; state is
// reconstructed per event from persisted link records plus the ephemeral
// pending-confirmation map.
package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiro1966/line-official-prottype1/internal/domain/link"
	"github.com/hiro1966/line-official-prottype1/internal/domain/token"
	"github.com/hiro1966/line-official-prottype1/internal/platform/messaging"
)

// Replier is the single-response side of the messaging transport.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

var (
	registrationCodeRe = regexp.MustCompile(`登録コード:\s*(.+)`)
	numericRe          = regexp.MustCompile(`^\d+$`)
)

type Service struct {
	links       link.Repository
	replier     Replier
	expiryHours int
	logger      zerolog.Logger

	pending *pendingStore

	// accountMu serializes events per account so list/select/confirm from
	// one conversation cannot interleave.
	accountMuMu sync.Mutex
	accountMu   map[string]*sync.Mutex

	now func() time.Time
}

func NewService(links link.Repository, replier Replier, expiryHours int, logger zerolog.Logger) *Service {
	return &Service{
		links:       links,
		replier:     replier,
		expiryHours: expiryHours,
		logger:      logger,
		pending:     newPendingStore(),
		accountMu:   make(map[string]*sync.Mutex),
		now:         time.Now,
	}
}

// HandleEvent processes one webhook event. Failures are logged, not
// propagated, so sibling events in a batch are unaffected.
func (s *Service) HandleEvent(ctx context.Context, ev messaging.Event) {
	switch ev.Type {
	case messaging.EventTypeFollow:
		s.reply(ctx, ev.ReplyToken, msgWelcome)
	case messaging.EventTypeMessage:
		if ev.Message == nil || ev.Message.Type != "text" || ev.Source.UserID == "" {
			return
		}
		s.handleText(ctx, ev.Source.UserID, strings.TrimSpace(ev.Message.Text), ev.ReplyToken)
	default:
		s.logger.Debug().Str("type", ev.Type).Msg("unhandled event type")
	}
}

func (s *Service) handleText(ctx context.Context, accountID, text, replyToken string) {
	mu := s.lockAccount(accountID)
	defer mu.Unlock()

	affirmative := text == "はい" || strings.EqualFold(text, "yes")

	// Any non-affirmative input cancels a pending confirmation before being
	// handled as a fresh command.
	if !affirmative {
		s.pending.Delete(accountID)
	}

	switch {
	case affirmative:
		s.confirmUnlink(ctx, accountID, replyToken)
	case text == "リスト" || strings.EqualFold(text, "list"):
		s.listLinks(ctx, accountID, replyToken)
	case numericRe.MatchString(text):
		n, err := strconv.Atoi(text)
		if err != nil {
			s.reply(ctx, replyToken, msgInvalidNumber)
			return
		}
		s.selectUnlink(ctx, accountID, n, replyToken)
	case strings.Contains(text, "登録コード:"):
		s.registerLink(ctx, accountID, text, replyToken)
	default:
		s.reply(ctx, replyToken, msgHelp)
	}
}

// registerLink decodes a presented registration code, checks its age and
// persists the link.
func (s *Service) registerLink(ctx context.Context, accountID, text, replyToken string) {
	m := registrationCodeRe.FindStringSubmatch(text)
	if m == nil {
		s.reply(ctx, replyToken, msgRegistrationMalformed)
		return
	}
	tok := strings.TrimSpace(m[1])

	payload, err := token.Decode(tok)
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("registration decode failed")
		s.reply(ctx, replyToken, msgRegistrationFailed)
		return
	}

	if token.IsExpired(payload.IssuedAt, s.expiryHours) {
		s.reply(ctx, replyToken, msgRegistrationExpired)
		return
	}

	err = s.links.Insert(ctx, &link.LinkRecord{AccountID: accountID, Token: tok})
	if errors.Is(err, link.ErrConflict) {
		// Retried registration of an existing link is success to the user.
		s.reply(ctx, replyToken, msgAlreadyLinked(payload.PatientName))
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("insert link")
		s.reply(ctx, replyToken, msgGenericError)
		return
	}

	s.logger.Info().Str("account_id", accountID).Msg("patient linked")
	s.reply(ctx, replyToken, msgLinked(payload.PatientName))
}

// listLinks renders the numbered list of linked patients. Records whose token
// no longer decodes degrade to a placeholder entry instead of blocking the
// rest of the list.
func (s *Service) listLinks(ctx context.Context, accountID, replyToken string) {
	records, err := s.links.FindByAccount(ctx, accountID)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("list links")
		s.reply(ctx, replyToken, msgGenericError)
		return
	}
	if len(records) == 0 {
		s.reply(ctx, replyToken, msgNoLinks)
		return
	}

	entries := make([]string, len(records))
	for i, rec := range records {
		name := msgDecodeEntry
		if p, err := token.Decode(rec.Token); err == nil {
			name = p.PatientName
		} else {
			s.logger.Warn().Err(err).Str("account_id", accountID).Msg("list entry decode failed")
		}
		entries[i] = fmt.Sprintf("%d. %s", i+1, name)
	}

	s.reply(ctx, replyToken, msgListHeader+strings.Join(entries, "\n")+msgListFooter)
}

// selectUnlink validates a numbered selection and arms the pending
// confirmation for it.
func (s *Service) selectUnlink(ctx context.Context, accountID string, n int, replyToken string) {
	records, err := s.links.FindByAccount(ctx, accountID)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("select unlink")
		s.reply(ctx, replyToken, msgGenericError)
		return
	}
	if len(records) == 0 || n < 1 || n > len(records) {
		s.reply(ctx, replyToken, msgInvalidNumber)
		return
	}

	rec := records[n-1]
	payload, err := token.Decode(rec.Token)
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("selected record decode failed")
		s.reply(ctx, replyToken, msgGenericError)
		return
	}

	s.pending.Put(accountID, n-1, recordHash(rec), s.now())
	s.reply(ctx, replyToken, msgConfirmPrompt(payload.PatientName))
}

// confirmUnlink commits a pending unlink. The record set is re-fetched and
// the selection is re-validated against both index range and content hash, so
// a record deleted or reordered since selection fails gracefully instead of
// deleting the wrong record.
func (s *Service) confirmUnlink(ctx context.Context, accountID, replyToken string) {
	entry, ok := s.pending.Get(accountID)
	if !ok {
		s.reply(ctx, replyToken, msgNoSelection)
		return
	}

	if s.now().Sub(entry.CreatedAt) > confirmTTL {
		s.pending.Delete(accountID)
		s.reply(ctx, replyToken, msgConfirmTimeout)
		return
	}

	records, err := s.links.FindByAccount(ctx, accountID)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("confirm unlink")
		s.pending.Delete(accountID)
		s.reply(ctx, replyToken, msgGenericError)
		return
	}
	if entry.Index >= len(records) {
		s.pending.Delete(accountID)
		s.reply(ctx, replyToken, msgRetryFromList)
		return
	}

	rec := records[entry.Index]
	if recordHash(rec) != entry.RecordHash {
		s.pending.Delete(accountID)
		s.reply(ctx, replyToken, msgRetryFromList)
		return
	}

	payload, err := token.Decode(rec.Token)
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("confirm decode failed")
		s.pending.Delete(accountID)
		s.reply(ctx, replyToken, msgGenericError)
		return
	}

	if err := s.links.Delete(ctx, rec.ID); err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("delete link")
		s.pending.Delete(accountID)
		s.reply(ctx, replyToken, msgGenericError)
		return
	}

	s.pending.Delete(accountID)
	s.logger.Info().Str("account_id", accountID).Msg("patient unlinked")
	s.reply(ctx, replyToken, msgUnlinked(payload.PatientName))
}

// reply is fire-and-forget: delivery failures are logged, never retried.
func (s *Service) reply(ctx context.Context, replyToken, text string) {
	if err := s.replier.Reply(ctx, replyToken, text); err != nil {
		s.logger.Error().Err(err).Msg("reply failed")
	}
}

func (s *Service) lockAccount(accountID string) *sync.Mutex {
	s.accountMuMu.Lock()
	mu, ok := s.accountMu[accountID]
	if !ok {
		mu = &sync.Mutex{}
		s.accountMu[accountID] = mu
	}
	s.accountMuMu.Unlock()
	mu.Lock()
	return mu
}
