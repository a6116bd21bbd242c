package reminder

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/meeting-scheduler/internal/logging"
)

// DefaultPollInterval is how often the run loop checks for due reminders
// when no interval is configured.
const DefaultPollInterval = 30 * time.Second

// Notifier delivers a single reminder to the external notification
// collaborator. Delivery errors are recorded per reminder and never abort
// sibling reminders.
type Notifier interface {
	Notify(ctx context.Context, roomID string, leadMinutes int) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, roomID string, leadMinutes int) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, roomID string, leadMinutes int) error {
	return f(ctx, roomID, leadMinutes)
}

// entry is one pending reminder in the due-time heap. Cancellation is
// tracked per room through generations: entries from an older generation
// than the room's current one are discarded at pop time, so Cancel never
// has to search the heap.
type entry struct {
	roomID     string
	lead       int
	fireAt     time.Time
	generation uint64
}

type entryHeap []entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// DeliveryFailure records a notification error for one reminder.
type DeliveryFailure struct {
	RoomID      string
	LeadMinutes int
	FireAt      time.Time
	Err         error
}

// Scheduler owns reminder sets keyed by room and fires due reminders
// against the injected clock. All mutation happens under one mutex so a
// reminder observed as cancelled can never fire afterwards.
type Scheduler struct {
	mu          sync.Mutex
	heap        entryHeap
	generations map[string]uint64
	failures    []DeliveryFailure

	now      func() time.Time
	notifier Notifier
	logger   *slog.Logger
	poll     time.Duration
}

// NewScheduler wires the notification collaborator and clock. Nil arguments
// select time.Now, a discarding notifier and the default slog logger.
func NewScheduler(notifier Notifier, now func() time.Time, logger *slog.Logger, pollInterval time.Duration) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, string, int) error { return nil })
	}
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Scheduler{
		generations: make(map[string]uint64),
		now:         now,
		notifier:    notifier,
		logger:      logger,
		poll:        pollInterval,
	}
}

// Schedule installs the pending reminders of the set, replacing any earlier
// set for the same room.
func (s *Scheduler) Schedule(set Set) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.generations[set.RoomID] + 1
	s.generations[set.RoomID] = gen

	for _, r := range set.Pending() {
		heap.Push(&s.heap, entry{
			roomID:     r.RoomID,
			lead:       r.LeadMinutes,
			fireAt:     r.FireAt,
			generation: gen,
		})
	}
}

// Cancel atomically invalidates every pending reminder for the room. A
// reminder already handed to the notifier may complete; one still in the
// heap never fires after Cancel returns.
func (s *Scheduler) Cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[roomID]++
}

// FireDue delivers every reminder due at the given instant. Each reminder
// is handed to the notifier exactly once; delivery failures are logged,
// recorded, and do not affect the remaining reminders. It returns the
// number of reminders delivered to the notifier.
func (s *Scheduler) FireDue(ctx context.Context, now time.Time) int {
	due := s.popDue(now)
	fired := 0
	for _, e := range due {
		fired++
		if err := s.notifier.Notify(ctx, e.roomID, e.lead); err != nil {
			s.recordFailure(DeliveryFailure{
				RoomID:      e.roomID,
				LeadMinutes: e.lead,
				FireAt:      e.fireAt,
				Err:         err,
			})
			s.loggerFrom(ctx).Warn("reminder delivery failed",
				"room_id", e.roomID,
				"lead_minutes", e.lead,
				"error", err,
				"error_kind", logging.ErrorKind(err),
			)
		}
	}
	return fired
}

// Run polls for due reminders until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.FireDue(ctx, s.now())
		}
	}
}

// Failures returns a copy of the recorded delivery failures.
func (s *Scheduler) Failures() []DeliveryFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeliveryFailure, len(s.failures))
	copy(out, s.failures)
	return out
}

// PendingCount reports how many reminders are still eligible to fire for
// the room.
func (s *Scheduler) PendingCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.generations[roomID]
	count := 0
	for _, e := range s.heap {
		if e.roomID == roomID && e.generation == gen {
			count++
		}
	}
	return count
}

// popDue removes and returns every live entry due at or before now.
// Entries from superseded generations are discarded here, which is the
// point where cancellation becomes observable.
func (s *Scheduler) popDue(now time.Time) []entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []entry
	for s.heap.Len() > 0 {
		next := s.heap[0]
		if next.fireAt.After(now) {
			break
		}
		heap.Pop(&s.heap)
		if next.generation != s.generations[next.roomID] {
			continue
		}
		due = append(due, next)
	}
	return due
}

func (s *Scheduler) recordFailure(f DeliveryFailure) {
	s.mu.Lock()
	s.failures = append(s.failures, f)
	s.mu.Unlock()
}

func (s *Scheduler) loggerFrom(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return s.logger
}
