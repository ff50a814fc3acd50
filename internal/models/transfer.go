package models

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transfer tracks one attachment upload relayed to the API.
type Transfer struct {
	ID         string     `json:"id"`
	Files      []string   `json:"files"`
	Status     string     `json:"status"` // "pending", "running", "completed", "failed"
	Sent       int64      `json:"sent"`
	Total      int64      `json:"total"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Output     []string   `json:"output"`
	mu         sync.Mutex
}

// Start marks the transfer as running with the announced total size.
func (t *Transfer) Start(files []string, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Files = files
	t.Total = total
	t.Status = "running"
	t.StartedAt = time.Now()
	t.Output = append(t.Output, fmt.Sprintf("start %d file(s), %d bytes", len(files), total))
}

// Progress records bytes sent so far. A line is emitted per whole percent.
func (t *Transfer) Progress(sent, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if total > 0 {
		t.Total = total
	}
	before := percent(t.Sent, t.Total)
	t.Sent = sent
	if after := percent(t.Sent, t.Total); after != before {
		t.Output = append(t.Output, fmt.Sprintf("progress %d%%", after))
	}
}

// LogsSince returns output lines starting from the given index.
func (t *Transfer) LogsSince(offset int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if offset >= len(t.Output) {
		return nil
	}
	lines := make([]string, len(t.Output)-offset)
	copy(lines, t.Output[offset:])
	return lines
}

// Complete marks the transfer as completed.
func (t *Transfer) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = "completed"
	t.Output = append(t.Output, "done")
	now := time.Now()
	t.FinishedAt = &now
}

// Fail marks the transfer as failed with an error message.
func (t *Transfer) Fail(err string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = "failed"
	t.Error = err
	t.Output = append(t.Output, "ERROR: "+err)
	now := time.Now()
	t.FinishedAt = &now
}

// Finished reports whether the transfer reached a terminal state.
func (t *Transfer) Finished() (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Status == "completed" || t.Status == "failed", t.Status
}

func percent(sent, total int64) int64 {
	if total <= 0 {
		return 0
	}
	return sent * 100 / total
}

// TransferStore is an in-memory thread-safe store for transfers.
type TransferStore struct {
	mu        sync.RWMutex
	transfers map[string]*Transfer
}

// NewTransferStore creates an empty transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{transfers: make(map[string]*Transfer)}
}

// Create adds a pending transfer, assigning it a UUID.
func (s *TransferStore) Create() *Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &Transfer{
		ID:        uuid.New().String(),
		Status:    "pending",
		StartedAt: time.Now(),
		Output:    []string{},
	}
	s.transfers[t.ID] = t
	return t
}

// Get returns a transfer by ID.
func (s *TransferStore) Get(id string) *Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transfers[id]
}

// List returns all transfers, most recent first.
func (s *TransferStore) List() []*Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Transfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result
}

// Prune drops finished transfers older than maxAge, and pending ones that
// were never started within it.
func (s *TransferStore) Prune(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	n := 0
	for id, t := range s.transfers {
		t.mu.Lock()
		old := t.FinishedAt != nil && t.FinishedAt.Before(cutoff) ||
			t.Status == "pending" && t.StartedAt.Before(cutoff)
		t.mu.Unlock()
		if old {
			delete(s.transfers, id)
			n++
		}
	}
	return n
}
