package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBatch_IgnoresNilUser(t *testing.T) {
	var b Batch
	b.Add(uuid.Nil, TypeCandidatureStatut, "t", "m", "")
	b.AddMany([]uuid.UUID{uuid.New(), uuid.Nil, uuid.New()}, TypeCandidatureStatut, "t", "m", "/x")

	assert.Equal(t, 2, b.Len())
	for _, n := range b.Items() {
		assert.Equal(t, "/x", n.Link)
	}
}

func TestSender_StampsAndDispatches(t *testing.T) {
	rec := &Recorder{}
	sender := NewSender(rec, zap.NewNop(), 0)
	user := uuid.New()

	var b Batch
	b.Add(user, TypeContratActif, "Contrat actif", "Le contrat CTR-2026-0001 est actif", "/contrats/1")
	sender.Send(context.Background(), &b)

	sent := rec.For(user, TypeContratActif)
	require.Len(t, sent, 1)
	assert.NotEqual(t, uuid.Nil, sent[0].ID)
	assert.False(t, sent[0].CreatedAt.IsZero())
}

func TestSender_SwallowsDispatchErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rec := &Recorder{Err: errors.New("broker down")}
	sender := NewSender(rec, zap.New(core), 0)

	var b Batch
	b.Add(uuid.New(), TypeFactureEmise, "t", "m", "")
	b.Add(uuid.New(), TypeFactureEmise, "t", "m", "")

	assert.NotPanics(t, func() { sender.Send(context.Background(), &b) })
	assert.Len(t, rec.Sent(), 2)
	assert.Equal(t, 2, logs.FilterMessage("notification dispatch failed").Len())
}

func TestSender_IgnoresCancelledRequestContext(t *testing.T) {
	rec := &Recorder{}
	sender := NewSender(rec, zap.NewNop(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var b Batch
	b.Add(uuid.New(), TypeCandidatureStatut, "t", "m", "")
	sender.Send(ctx, &b)
	assert.Len(t, rec.Sent(), 1)
}

func TestLogDispatcher_NotifyMany(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := NewLogDispatcher(zap.New(core))

	err := d.NotifyMany(context.Background(), []uuid.UUID{uuid.New(), uuid.New()}, Notification{Type: TypeAvenantActif})
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterMessage("notification").Len())
}

type countingDispatcher struct {
	Recorder
	single, many int
}

func (d *countingDispatcher) Notify(ctx context.Context, n Notification) error {
	d.single++
	return d.Recorder.Notify(ctx, n)
}

func (d *countingDispatcher) NotifyMany(ctx context.Context, userIDs []uuid.UUID, n Notification) error {
	d.many++
	return d.Recorder.NotifyMany(ctx, userIDs, n)
}

func TestSender_GroupsAddManyThroughNotifyMany(t *testing.T) {
	d := &countingDispatcher{}
	sender := NewSender(d, zap.NewNop(), 0)
	operators := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	var b Batch
	b.AddMany(operators, TypeCandidatureRecue, "Nouvelle candidature", "m", "/candidatures/1")
	b.Add(uuid.New(), TypeCandidatureStatut, "t", "m", "")
	b.AddMany([]uuid.UUID{uuid.Nil, operators[0]}, TypeFactureEmise, "t", "m", "")
	require.Equal(t, 5, b.Len())

	sender.Send(context.Background(), &b)

	assert.Equal(t, 1, d.many)
	assert.Equal(t, 2, d.single, "one-recipient groups go through Notify")

	sent := d.Sent()
	require.Len(t, sent, 5)
	ids := map[uuid.UUID]bool{}
	for _, n := range sent {
		assert.NotEqual(t, uuid.Nil, n.ID)
		assert.False(t, n.CreatedAt.IsZero())
		ids[n.ID] = true
	}
	assert.Len(t, ids, 5, "every recipient gets its own message id")
	for _, op := range operators {
		assert.Len(t, d.For(op, TypeCandidatureRecue), 1)
	}
}

func TestSender_LogsGroupFailureOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rec := &Recorder{Err: errors.New("broker down")}
	sender := NewSender(rec, zap.New(core), 0)

	var b Batch
	b.AddMany([]uuid.UUID{uuid.New(), uuid.New()}, TypeContratSigne, "t", "m", "")
	sender.Send(context.Background(), &b)

	assert.Len(t, rec.Sent(), 2)
	entries := logs.FilterMessage("notification dispatch failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["recipients"])
}
