package audit_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-reservas/internal/application/audit"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
	"github.com/jhoicas/inventario-reservas/pkg/metrics"
)

// memSink guarda lo recibido; si fail != nil lo devuelve.
type memSink struct {
	mu     sync.Mutex
	events []audit.Event
	fail   error
}

func (s *memSink) Log(_ context.Context, ev audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *memSink) received() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}

// retryRunner ejecuta fn una vez fallando con conflict y luego de verdad, como un reintento por 40001.
type retryRunner struct {
	store    *memory.Store
	conflict error
}

func (r retryRunner) Run(ctx context.Context, fn func(repos repository.Set) error) error {
	err := r.store.Run(ctx, func(repos repository.Set) error {
		if err := fn(repos); err != nil {
			return err
		}
		return r.conflict
	})
	if !errors.Is(err, r.conflict) {
		return err
	}
	return r.store.Run(ctx, fn)
}

var actor = domain.Actor{CompanyID: "c1", UserID: "u1", Role: domain.RoleAdmin, RequestID: "req-1"}

func record(events *audit.Batch, action string) error {
	return events.Record(context.Background(), actor, action, "sale", "s1", "antes", "después", map[string]any{"k": 1})
}

func TestInTx_FailOpenPublicaTrasCommit(t *testing.T) {
	sink := &memSink{}
	rec := audit.NewRecorder(sink, audit.PolicyFailOpen, nil, nil)

	err := rec.InTx(context.Background(), memory.NewStore(), func(_ repository.Set, events *audit.Batch) error {
		require.NoError(t, record(events, "sale.pay"))
		assert.Empty(t, sink.received(), "nada llega al sink antes del commit")
		return nil
	})
	require.NoError(t, err)

	got := sink.received()
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "c1", got[0].CompanyID)
	assert.Equal(t, "u1", got[0].ActorID)
	assert.Equal(t, "req-1", got[0].RequestID)
	assert.Equal(t, "sale.pay", got[0].Action)
	assert.Equal(t, "s1", got[0].EntityID)
	assert.False(t, got[0].OccurredAt.IsZero())
}

func TestInTx_RollbackNoPublica(t *testing.T) {
	sink := &memSink{}
	rec := audit.NewRecorder(sink, audit.PolicyFailOpen, nil, nil)
	cause := domain.NewBusinessRule("stock insuficiente")

	err := rec.InTx(context.Background(), memory.NewStore(), func(_ repository.Set, events *audit.Batch) error {
		require.NoError(t, record(events, "reservation.confirm"))
		return cause
	})
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
	assert.Empty(t, sink.received())
}

func TestInTx_ReintentoNoDuplica(t *testing.T) {
	sink := &memSink{}
	rec := audit.NewRecorder(sink, audit.PolicyFailOpen, nil, nil)
	runner := retryRunner{store: memory.NewStore(), conflict: errors.New("40001")}

	attempts := 0
	err := rec.InTx(context.Background(), runner, func(_ repository.Set, events *audit.Batch) error {
		attempts++
		return record(events, "sale.pay")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Len(t, sink.received(), 1)
}

func TestInTx_FailOpenFallaDelSinkNoPropaga(t *testing.T) {
	m := metrics.New("test")
	sink := &memSink{fail: errors.New("kafka caído")}
	rec := audit.NewRecorder(sink, audit.PolicyFailOpen, nil, m)

	err := rec.InTx(context.Background(), memory.NewStore(), func(_ repository.Set, events *audit.Batch) error {
		return record(events, "sale.pay")
	})
	assert.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuditFailures.WithLabelValues(audit.PolicyFailOpen)))
}

func TestInTx_FailClosedEscribeOutboxEnLaTransaccion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sink := &memSink{}
	rec := audit.NewRecorder(sink, audit.PolicyFailClosed, nil, nil)

	err := rec.InTx(ctx, store, func(_ repository.Set, events *audit.Batch) error {
		return record(events, "sale.pay")
	})
	require.NoError(t, err)
	assert.Empty(t, sink.received(), "fail-closed entrega por el relay")

	pending, err := store.Repos().Outbox.FindUnpublished(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "sale.pay", pending[0].Action)

	// un rollback se lleva el evento del outbox
	err = rec.InTx(ctx, store, func(_ repository.Set, events *audit.Batch) error {
		require.NoError(t, record(events, "sale.cancel"))
		return domain.NewBusinessRule("no")
	})
	require.Error(t, err)
	n, err := store.Repos().Outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// brokenOutbox rechaza toda escritura.
type brokenOutbox struct {
	repository.AuditOutboxRepository
	err error
}

func (b brokenOutbox) Create(context.Context, *entity.OutboxEvent) error { return b.err }

func TestBatch_FailClosedOutboxCaidoDevuelveErrInternal(t *testing.T) {
	cause := errors.New("disco lleno")
	rec := audit.NewRecorder(&memSink{}, audit.PolicyFailClosed, nil, nil)
	events := rec.Begin(repository.Set{Outbox: brokenOutbox{err: cause}})

	err := record(events, "sale.pay")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.ErrorIs(t, err, cause)
}

func TestNewRecorder_PoliticaDesconocidaEsFailOpen(t *testing.T) {
	rec := audit.NewRecorder(nil, "cualquiera", nil, nil)
	assert.Equal(t, audit.PolicyFailOpen, rec.Policy())
}

func TestRecorder_SinSinkEsNoop(t *testing.T) {
	var rec *audit.Recorder
	events := rec.Begin(repository.Set{})
	assert.Nil(t, events)
	assert.NoError(t, record(events, "x"))
	assert.NotPanics(t, func() { events.Publish(context.Background()) })

	err := rec.InTx(context.Background(), memory.NewStore(), func(_ repository.Set, events *audit.Batch) error {
		return record(events, "x")
	})
	assert.NoError(t, err)
	assert.Nil(t, audit.NewRecorder(nil, audit.PolicyFailClosed, nil, nil).Begin(repository.Set{}))
}

func TestRelay_EntregaYReintenta(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sink := &memSink{fail: errors.New("kafka caído")}
	m := metrics.New("test")
	rec := audit.NewRecorder(sink, audit.PolicyFailClosed, nil, nil)
	for _, action := range []string{"sale.pay", "sale.ship"} {
		action := action
		require.NoError(t, rec.InTx(ctx, store, func(_ repository.Set, events *audit.Batch) error {
			return record(events, action)
		}))
	}
	relay := audit.NewRelay(store.Repos().Outbox, sink, audit.RelayConfig{MaxRetries: 2}, nil, m)

	result, err := relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, audit.RelayResult{Failed: 2}, result)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.AuditOutboxPending))

	sink.mu.Lock()
	sink.fail = nil
	sink.mu.Unlock()
	result, err = relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, audit.RelayResult{Published: 2}, result)

	got := sink.received()
	require.Len(t, got, 2)
	assert.Equal(t, "sale.pay", got[0].Action, "se entrega en orden de inserción")
	assert.Equal(t, "sale.ship", got[1].Action)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.AuditOutboxPending))

	result, err = relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, audit.RelayResult{}, result, "lo publicado no se reenvía")
}

func TestRelay_AgotaReintentos(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sink := &memSink{fail: errors.New("kafka caído")}
	rec := audit.NewRecorder(sink, audit.PolicyFailClosed, nil, nil)
	require.NoError(t, rec.InTx(ctx, store, func(_ repository.Set, events *audit.Batch) error {
		return record(events, "sale.pay")
	}))
	relay := audit.NewRelay(store.Repos().Outbox, sink, audit.RelayConfig{MaxRetries: 1}, nil, nil)

	result, err := relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	result, err = relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, audit.RelayResult{}, result, "agotados los reintentos queda para revisión manual")

	pending, err := store.Repos().Outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestRelay_RunNoSeSolapa(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	sink := sinkFunc(func(context.Context, audit.Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		return nil
	})
	rec := audit.NewRecorder(sink, audit.PolicyFailClosed, nil, nil)
	require.NoError(t, rec.InTx(ctx, store, func(_ repository.Set, events *audit.Batch) error {
		return record(events, "sale.pay")
	}))
	relay := audit.NewRelay(store.Repos().Outbox, sink, audit.RelayConfig{}, nil, nil)

	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()
	<-started
	relay.Run(ctx) // retorna de inmediato
	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("el relay no terminó")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

type sinkFunc func(context.Context, audit.Event) error

func (f sinkFunc) Log(ctx context.Context, ev audit.Event) error { return f(ctx, ev) }

func TestLogSink_EscribeJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := audit.NewLogSink(logger.New(logger.Config{Env: "production", Level: "info", Out: &buf}))

	err := sink.Log(context.Background(), audit.Event{ID: "e1", CompanyID: "c1", Action: "reservation.create", EntityID: "r1"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"action":"reservation.create"`)
	assert.Contains(t, buf.String(), `"entity_id":"r1"`)
	assert.Contains(t, buf.String(), `"event_id":"e1"`)
}
