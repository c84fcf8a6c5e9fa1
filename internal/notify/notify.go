// Package notify hands lifecycle notifications to the external delivery service.
//
// Services collect notifications in a Batch while their transaction runs and give
// the batch to a Sender once it has committed. Dispatch is best effort: failures
// are logged and never reach the caller.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notification types
const (
	TypeCandidatureStatut   = "candidature_statut"
	TypeCandidatureRecue    = "candidature_recue"
	TypeCandidatSelectionne = "candidat_selectionne"
	TypeCandidatRefuse      = "candidat_refuse"
	TypeEntretienDemande    = "entretien_demande"
	TypeInfosDemandees      = "infos_demandees"
	TypeEntretienPropose    = "entretien_propose"
	TypeEntretienMisAJour   = "entretien_mis_a_jour"
	TypeContratASigner      = "contrat_a_signer"
	TypeContratSigne        = "contrat_signe"
	TypeContratActif        = "contrat_actif"
	TypeContratTermine      = "contrat_termine"
	TypeAvenantASigner      = "avenant_a_signer"
	TypeAvenantActif        = "avenant_actif"
	TypeFactureEmise        = "facture_emise"
	TypeFactureRelance      = "facture_relance"
	TypeFactureEnRetard     = "facture_en_retard"
	TypeFacturePayee        = "facture_payee"
)

// Notification is one message for one user.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Dispatcher enqueues notifications with the delivery service.
type Dispatcher interface {
	Notify(ctx context.Context, n Notification) error
	NotifyMany(ctx context.Context, userIDs []uuid.UUID, n Notification) error
}

// Batch accumulates notifications produced inside a unit of work.
// The zero value is ready to use.
type Batch struct {
	entries []entry
}

// entry is one message and the users it goes to.
type entry struct {
	users []uuid.UUID
	n     Notification
}

// Add queues a notification for one user. A nil user id is ignored.
func (b *Batch) Add(userID uuid.UUID, typ, title, message, link string) {
	b.AddMany([]uuid.UUID{userID}, typ, title, message, link)
}

// AddMany queues the same notification for several users. Nil user ids are
// ignored; the remaining users are dispatched together.
func (b *Batch) AddMany(userIDs []uuid.UUID, typ, title, message, link string) {
	users := make([]uuid.UUID, 0, len(userIDs))
	for _, id := range userIDs {
		if id != uuid.Nil {
			users = append(users, id)
		}
	}
	if len(users) == 0 {
		return
	}
	b.entries = append(b.entries, entry{
		users: users,
		n:     Notification{Type: typ, Title: title, Message: message, Link: link},
	})
}

// Len returns the number of queued notifications, one per recipient.
func (b *Batch) Len() int {
	n := 0
	for _, e := range b.entries {
		n += len(e.users)
	}
	return n
}

// Items returns the queued notifications, one per recipient.
func (b *Batch) Items() []Notification {
	out := make([]Notification, 0, b.Len())
	for _, e := range b.entries {
		for _, id := range e.users {
			n := e.n
			n.UserID = id
			out = append(out, n)
		}
	}
	return out
}

// Sender dispatches committed batches.
type Sender struct {
	dispatcher Dispatcher
	log        *zap.Logger
	timeout    time.Duration
	now        func() time.Time
}

// NewSender creates a Sender. A non-positive timeout defaults to five seconds.
func NewSender(d Dispatcher, log *zap.Logger, timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sender{dispatcher: d, log: log, timeout: timeout, now: time.Now}
}

// Send dispatches every notification of b. It detaches from ctx cancellation so a
// request finishing early does not drop messages, and bounds the whole batch by
// the sender timeout.
func (s *Sender) Send(ctx context.Context, b *Batch) {
	if b == nil || len(b.entries) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	for _, e := range b.entries {
		n := e.n
		n.CreatedAt = s.now().UTC()

		var err error
		if len(e.users) == 1 {
			n.ID = uuid.New()
			n.UserID = e.users[0]
			err = s.dispatcher.Notify(ctx, n)
		} else {
			err = s.dispatcher.NotifyMany(ctx, e.users, n)
		}
		if err != nil {
			s.log.Warn("notification dispatch failed",
				zap.String("type", n.Type),
				zap.Int("recipients", len(e.users)),
				zap.Error(err),
			)
		}
	}
}
