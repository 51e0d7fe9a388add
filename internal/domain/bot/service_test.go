package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hiro1966/line-official-prottype1/internal/domain/link"
	"github.com/hiro1966/line-official-prottype1/internal/domain/token"
	"github.com/hiro1966/line-official-prottype1/internal/platform/messaging"
)

// ── Mocks ──

type mockLinkRepo struct {
	mu      sync.Mutex
	records []*link.LinkRecord
}

func (m *mockLinkRepo) FindByAccount(_ context.Context, accountID string) ([]*link.LinkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*link.LinkRecord
	for _, r := range m.records {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockLinkRepo) FindByToken(_ context.Context, tok string) (*link.LinkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Token == tok {
			return r, nil
		}
	}
	return nil, link.ErrNotFound
}

func (m *mockLinkRepo) ListByToken(_ context.Context, tok string) ([]*link.LinkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*link.LinkRecord
	for _, r := range m.records {
		if r.Token == tok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockLinkRepo) Insert(_ context.Context, rec *link.LinkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.AccountID == rec.AccountID && r.Token == rec.Token {
			return link.ErrConflict
		}
	}
	rec.ID = uuid.New()
	rec.LinkedAt = time.Now()
	m.records = append(m.records, rec)
	return nil
}

func (m *mockLinkRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return link.ErrNotFound
}

func (m *mockLinkRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type mockReplier struct {
	mu      sync.Mutex
	replies []string
}

func (m *mockReplier) Reply(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, text)
	return nil
}

func (m *mockReplier) last(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		t.Fatal("expected a reply")
	}
	return m.replies[len(m.replies)-1]
}

// ── Helpers ──

func newTestService() (*Service, *mockLinkRepo, *mockReplier) {
	repo := &mockLinkRepo{}
	replier := &mockReplier{}
	svc := NewService(repo, replier, 24, zerolog.Nop())
	return svc, repo, replier
}

func issueToken(t *testing.T, patientID, name string, issuedAt time.Time) string {
	t.Helper()
	tok, err := token.Encode(token.RegistrationPayload{
		PatientID:   patientID,
		PatientName: name,
		IssuedAt:    issuedAt.UTC().Format(token.IssuedAtLayout),
	})
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}
	return tok
}

func textEvent(accountID, text string) messaging.Event {
	return messaging.Event{
		Type:       messaging.EventTypeMessage,
		ReplyToken: "rt",
		Source:     messaging.Source{Type: "user", UserID: accountID},
		Message:    &messaging.Message{Type: "text", ID: "m1", Text: text},
	}
}

func send(svc *Service, accountID, text string) {
	svc.HandleEvent(context.Background(), textEvent(accountID, text))
}

// ── Tests ──

func TestFollowEvent(t *testing.T) {
	svc, repo, replier := newTestService()
	svc.HandleEvent(context.Background(), messaging.Event{
		Type:       messaging.EventTypeFollow,
		ReplyToken: "rt",
		Source:     messaging.Source{Type: "user", UserID: "U1"},
	})
	if replier.last(t) != msgWelcome {
		t.Errorf("expected welcome reply, got %q", replier.last(t))
	}
	if repo.count() != 0 {
		t.Error("follow event must not touch storage")
	}
}

func TestRegistration(t *testing.T) {
	svc, repo, replier := newTestService()
	tok := issueToken(t, "P1", "Taro", time.Now())

	send(svc, "U1", "登録コード: "+tok)

	if repo.count() != 1 {
		t.Fatalf("expected 1 link record, got %d", repo.count())
	}
	if !strings.Contains(replier.last(t), "Taro") {
		t.Errorf("expected reply to name the patient, got %q", replier.last(t))
	}
}

func TestRegistration_Expired(t *testing.T) {
	svc, repo, replier := newTestService()
	tok := issueToken(t, "P1", "Taro", time.Now().Add(-25*time.Hour))

	send(svc, "U1", "登録コード: "+tok)

	if repo.count() != 0 {
		t.Error("expired token must not create a link record")
	}
	if replier.last(t) != msgRegistrationExpired {
		t.Errorf("expected expiry reply, got %q", replier.last(t))
	}
}

func TestRegistration_DecodeFailure(t *testing.T) {
	svc, repo, replier := newTestService()

	send(svc, "U1", "登録コード: not-a-valid-token")

	if repo.count() != 0 {
		t.Error("undecodable token must not create a link record")
	}
	if replier.last(t) != msgRegistrationFailed {
		t.Errorf("expected decode-failure reply, got %q", replier.last(t))
	}
}

func TestRegistration_DuplicateIsIdempotent(t *testing.T) {
	svc, repo, replier := newTestService()
	tok := issueToken(t, "P1", "Taro", time.Now())

	send(svc, "U1", "登録コード: "+tok)
	send(svc, "U1", "登録コード: "+tok)

	if repo.count() != 1 {
		t.Fatalf("expected 1 link record after retry, got %d", repo.count())
	}
	if !strings.Contains(replier.last(t), "Taro") {
		t.Errorf("expected already-linked reply to name the patient, got %q", replier.last(t))
	}
}

func TestList_Empty(t *testing.T) {
	svc, _, replier := newTestService()
	send(svc, "U1", "リスト")
	if replier.last(t) != msgNoLinks {
		t.Errorf("expected empty-list reply, got %q", replier.last(t))
	}
}

func TestList_NumberedAndStable(t *testing.T) {
	svc, _, replier := newTestService()
	send(svc, "U1", "登録コード: "+issueToken(t, "P1", "Taro", time.Now()))
	send(svc, "U1", "登録コード: "+issueToken(t, "P2", "Hanako", time.Now().Add(time.Millisecond)))

	send(svc, "U1", "list")
	first := replier.last(t)
	if !strings.Contains(first, "1. Taro") || !strings.Contains(first, "2. Hanako") {
		t.Errorf("expected numbered entries in insertion order, got %q", first)
	}

	send(svc, "U1", "リスト")
	if replier.last(t) != first {
		t.Error("two successive listings over an unchanged set must match")
	}
}

func TestList_DecodeFailureDegradesEntry(t *testing.T) {
	svc, repo, replier := newTestService()
	send(svc, "U1", "登録コード: "+issueToken(t, "P1", "Taro", time.Now()))
	repo.records = append(repo.records, &link.LinkRecord{
		ID: uuid.New(), AccountID: "U1", Token: "corrupt", LinkedAt: time.Now(),
	})

	send(svc, "U1", "リスト")
	got := replier.last(t)
	if !strings.Contains(got, "1. Taro") || !strings.Contains(got, "2. "+msgDecodeEntry) {
		t.Errorf("expected corrupt entry to degrade without hiding the rest, got %q", got)
	}
}

func TestSelect_OutOfRange(t *testing.T) {
	svc, _, replier := newTestService()
	send(svc, "U1", "登録コード: "+issueToken(t, "P1", "Taro", time.Now()))

	send(svc, "U1", "5")
	if replier.last(t) != msgInvalidNumber {
		t.Errorf("expected invalid-number reply, got %q", replier.last(t))
	}
	if _, ok := svc.pending.Get("U1"); ok {
		t.Error("out-of-range selection must not create pending state")
	}
}

func TestUnlink_FullScenario(t *testing.T) {
	svc, repo, replier := newTestService()
	send(svc, "U1", "登録コード: "+issueToken(t, "P1", "Taro", time.Now()))

	send(svc, "U1", "リスト")
	if !strings.Contains(replier.last(t), "1. Taro") {
		t.Fatalf("expected list with Taro, got %q", replier.last(t))
	}

	send(svc, "U1", "1")
	if !strings.Contains(replier.last(t), "Taro") || !strings.Contains(replier.last(t), "解除してよろしいですか") {
		t.Fatalf("expected confirmation prompt, got %q", replier.last(t))
	}

	send(svc, "U1", "はい")
	if repo.count() != 0 {
		t.Error("expected link record removed")
	}
	if replier.last(t) != msgUnlinked("Taro") {
		t.Errorf("expected unlink confirmation naming Taro, got %q", replier.last(t))
	}
}

func TestConfirm_WithoutSelection(t *testing.T) {
	svc, _, replier := newTestService()
	send(svc, "U1", "yes")
	if replier.last(t) != msgNoSelection {
		t.Errorf("expected no-selection reply, got %q", replier.last(t))
	}
}

func TestConfirm_TimeoutBoundary(t *testing.T) {
	for _, tt := range []struct {
		name    string
		elapsed time.Duration
		deleted bool
	}{
		{"within the window", 4*time.Minute + 59*time.Second, true},
		{"past the window", 5*time.Minute + time.Second, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, replier := newTestService()
			send(svc, "U1", "登録コード: "+issueToken(t, "P1", "Taro", time.Now()))

			base := time.Now()
			svc.now = func() time.Time { return base }
			send(svc, "U1", "1")

			svc.now = func() time.Time { return base.Add(tt.elapsed) }
			send(svc, "U1", "はい")

			if tt.deleted {
				if repo.count() != 0 {
					t.Error("expected confirmation inside the window to delete")
				}
			} else {
				if repo.count() != 1 {
					t.Error("expected expired confirmation to leave the record")
				}
				if replier.last(t) != msgConfirmTimeout {
					t.Errorf("expected timeout reply, got %q", replier.last(t))
				}
			}
		})
	}
}

func TestConfirm_IndexRevalidation(t *testing.T) {
	// Select item 2 of 3, delete it out of band, then confirm: the content
	// hash no longer matches the record now at index 1, so nothing may be
	// deleted.
	svc, repo, replier := newTestService()
	for i, name := range []string{"Taro", "Hanako", "Jiro"} {
		send(svc, "U1", "登録コード: "+issueToken(t, fmt.Sprintf("P%d", i+1), name, time.Now().Add(time.Duration(i)*time.Millisecond)))
	}

	send(svc, "U1", "2")
	if !strings.Contains(replier.last(t), "Hanako") {
		t.Fatalf("expected prompt for Hanako, got %q", replier.last(t))
	}

	// Out-of-band deletion of the selected record shifts Jiro into index 1.
	records, _ := repo.FindByAccount(context.Background(), "U1")
	if err := repo.Delete(context.Background(), records[1].ID); err != nil {
		t.Fatalf("out-of-band delete: %v", err)
	}

	send(svc, "U1", "はい")
	if repo.count() != 2 {
		t.Errorf("expected no deletion on stale selection, got %d records", repo.count())
	}
	if replier.last(t) != msgRetryFromList {
		t.Errorf("expected retry reply, got %q", replier.last(t))
	}
}

func TestConfirm_ListShrunkBelowIndex(t *testing.T) {
	svc, repo, replier := newTestService()
	send(svc, "U1", "登録コード: "+issueToken(t, "P1", "Taro", time.Now()))

	send(svc, "U1", "1")
	records, _ := repo.FindByAccount(context.Background(), "U1")
	repo.Delete(context.Background(), records[0].ID)

	send(svc, "U1", "はい")
	if replier.last(t) != msgRetryFromList {
		t.Errorf("expected retry reply when the list shrank, got %q", replier.last(t))
	}
}

func TestUnknownInput_CancelsPending(t *testing.T) {
	svc, repo, replier := newTestService()
	send(svc, "U1", "登録コード: "+issueToken(t, "P1", "Taro", time.Now()))

	send(svc, "U1", "1")
	send(svc, "U1", "こんにちは")
	if replier.last(t) != msgHelp {
		t.Errorf("expected help reply, got %q", replier.last(t))
	}

	send(svc, "U1", "はい")
	if replier.last(t) != msgNoSelection {
		t.Error("expected pending state to be cancelled by unrecognized input")
	}
	if repo.count() != 1 {
		t.Error("expected no deletion after cancellation")
	}
}

func TestUnknownInput_HelpReply(t *testing.T) {
	svc, _, replier := newTestService()
	send(svc, "U1", "なにこれ")
	if replier.last(t) != msgHelp {
		t.Errorf("expected help reply, got %q", replier.last(t))
	}
}
