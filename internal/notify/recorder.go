package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Recorder keeps every notification in memory. Tests use it to assert on side effects.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
	// Err, when set, is returned by every call after recording.
	Err error
}

// Notify records n.
func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.Err
}

// NotifyMany records n once per user.
func (r *Recorder) NotifyMany(ctx context.Context, userIDs []uuid.UUID, n Notification) error {
	for _, id := range userIDs {
		n.ID = uuid.New()
		n.UserID = id
		_ = r.Notify(ctx, n)
	}
	return r.Err
}

// Sent returns a copy of the recorded notifications.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// For returns the notifications of the given type sent to userID.
func (r *Recorder) For(userID uuid.UUID, typ string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.sent {
		if n.UserID == userID && n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
