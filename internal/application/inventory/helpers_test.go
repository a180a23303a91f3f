package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-reservas/internal/application/audit"
	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/memory"
)

const (
	testCompanyID = "00000000-0000-0000-0000-000000000002"
	testUserID    = "00000000-0000-0000-0000-000000000001"
)

var testActor = domain.Actor{
	CompanyID: testCompanyID,
	UserID:    testUserID,
	Role:      domain.RoleBodeguero,
	RequestID: "req-test",
}

// recordingSink guarda los eventos; si fail != nil lo devuelve en cada Log.
type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	fail   error
}

func (s *recordingSink) Log(_ context.Context, ev audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Action)
	}
	return out
}

// faultyOutbox envuelve el almacén: mientras fail != nil la escritura del outbox de auditoría falla
// (solo para la entidad only, si se indica).
type faultyOutbox struct {
	store *memory.Store
	mu    sync.Mutex
	fail  error
	only  string
}

func (r *faultyOutbox) Run(ctx context.Context, fn func(repos repository.Set) error) error {
	return r.store.Run(ctx, func(repos repository.Set) error {
		r.mu.Lock()
		fail, only := r.fail, r.only
		r.mu.Unlock()
		if fail != nil {
			repos.Outbox = failingOutbox{AuditOutboxRepository: repos.Outbox, err: fail, only: only}
		}
		return fn(repos)
	})
}

func (r *faultyOutbox) setFail(err error) { r.failFor(err, "") }

func (r *faultyOutbox) failFor(err error, entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail, r.only = err, entityID
}

type failingOutbox struct {
	repository.AuditOutboxRepository
	err  error
	only string
}

func (o failingOutbox) Create(ctx context.Context, ev *entity.OutboxEvent) error {
	if o.only != "" && ev.EntityID != o.only {
		return o.AuditOutboxRepository.Create(ctx, ev)
	}
	return o.err
}

type fixture struct {
	store        *memory.Store
	runner       *faultyOutbox
	sink         *recordingSink
	recorder     *audit.Recorder
	ledger       *inventory.StockLedgerUseCase
	reservations *inventory.ReservationUseCase
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()
	store := memory.NewStore()
	runner := &faultyOutbox{store: store}
	sink := &recordingSink{}
	recorder := audit.NewRecorder(sink, policy, nil, nil)
	return &fixture{
		store:    store,
		runner:   runner,
		sink:     sink,
		recorder: recorder,
		ledger:   inventory.NewStockLedgerUseCase(runner, store.Repos(), recorder),
		reservations: inventory.NewReservationUseCase(runner, store.Repos(), recorder, nil, nil,
			inventory.ReservationConfig{}),
	}
}

// relay entrega al sink lo pendiente en el outbox (política fail-closed).
func (f *fixture) relay(t *testing.T) audit.RelayResult {
	t.Helper()
	result, err := audit.NewRelay(f.store.Repos().Outbox, f.sink, audit.RelayConfig{}, nil, nil).
		Drain(context.Background())
	require.NoError(t, err)
	return result
}

func (f *fixture) createItem(t *testing.T, sku string, qty int64, serial string) *entity.StockItem {
	t.Helper()
	in := dto.CreateStockItemRequest{
		SKU:       sku,
		Model:     "Modelo " + sku,
		Quantity:  decimal.NewFromInt(qty),
		BasePrice: decimal.NewFromInt(1000),
	}
	if serial != "" {
		in.SerialNumber = &serial
	}
	item, err := f.ledger.CreateItem(context.Background(), testActor, in)
	require.NoError(t, err)
	return item
}

func (f *fixture) item(t *testing.T, id string) *entity.StockItem {
	t.Helper()
	item, err := f.store.Repos().Items.GetByID(context.Background(), testCompanyID, id)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

func (f *fixture) reservation(t *testing.T, id string) *entity.StockReservation {
	t.Helper()
	res, err := f.store.Repos().Reservations.GetByID(context.Background(), testCompanyID, id)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func (f *fixture) movements(t *testing.T, itemID string) []*entity.StockMovement {
	t.Helper()
	list, err := f.store.Repos().Movements.List(context.Background(), testCompanyID,
		repository.MovementFilter{StockItemID: itemID}, 1000, 0)
	require.NoError(t, err)
	return list
}

func movementTypes(list []*entity.StockMovement) []string {
	out := make([]string, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i].Type)
	}
	return out
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var (
	errSinkDown   = errors.New("sink caído")
	errOutboxDown = errors.New("outbox caído")
)

// stubLocker simula el lock distribuido.
type stubLocker struct {
	mu       sync.Mutex
	held     bool
	err      error
	acquired int
	released int
}

func (l *stubLocker) TryLock(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	l.acquired++
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		l.released++
		return nil
	}, true, nil
}

func decStr(s string) decimal.Decimal { return decimal.RequireFromString(s) }
