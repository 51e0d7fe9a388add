package bot

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hiro1966/line-official-prottype1/internal/domain/link"
)

// confirmTTL is how long a selected unlink waits for its confirmation.
const confirmTTL = 5 * time.Minute

// pendingConfirmation is the per-account scratch state between "select N" and
// "yes". RecordHash binds the confirmation to the selected record's content,
// so a reorder between selection and confirmation is detected even when the
// index is still in range.
type pendingConfirmation struct {
	Index      int
	RecordHash string
	CreatedAt  time.Time

	timer *time.Timer
}

// pendingStore keeps pending confirmations in process-local memory, keyed by
// account id. A process restart drops them; that is an accepted limitation,
// the user simply starts over from the list. Expiry is enforced both by a
// scheduled deletion and by a timestamp check at confirmation time, because
// the scheduled deletion alone is best-effort.
type pendingStore struct {
	mu      sync.Mutex
	entries map[string]*pendingConfirmation
}

func newPendingStore() *pendingStore {
	return &pendingStore{entries: make(map[string]*pendingConfirmation)}
}

func (s *pendingStore) Put(accountID string, index int, recordHash string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[accountID]; ok && old.timer != nil {
		old.timer.Stop()
	}
	entry := &pendingConfirmation{Index: index, RecordHash: recordHash, CreatedAt: now}
	entry.timer = time.AfterFunc(confirmTTL, func() { s.expire(accountID, entry) })
	s.entries[accountID] = entry
}

func (s *pendingStore) Get(accountID string) (*pendingConfirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[accountID]
	return entry, ok
}

func (s *pendingStore) Delete(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[accountID]; ok {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(s.entries, accountID)
	}
}

// expire removes entry only if it is still the current one for the account;
// a newer selection must not be dropped by a stale timer.
func (s *pendingStore) expire(accountID string, entry *pendingConfirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.entries[accountID]; ok && current == entry {
		delete(s.entries, accountID)
	}
}

// recordHash fingerprints a link record for confirmation binding.
func recordHash(rec *link.LinkRecord) string {
	sum := sha256.Sum256([]byte(rec.ID.String() + "|" + rec.Token))
	return hex.EncodeToString(sum[:])
}
