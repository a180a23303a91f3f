// Package memory implementa los repositorios y el TxRunner en memoria.
// Se usa en pruebas y con DB_DRIVER=memory. Las transacciones son serializables:
// cada Run trabaja sobre una copia del estado y la publica solo si fn no falla.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

type state struct {
	items        map[string]*entity.StockItem
	reservations map[string]*entity.StockReservation
	movements    []*entity.StockMovement
	sales        map[string]*entity.Sale
	saleSeq      map[string]int64
	outbox       []*entity.OutboxEvent
}

func newState() *state {
	return &state{
		items:        make(map[string]*entity.StockItem),
		reservations: make(map[string]*entity.StockReservation),
		sales:        make(map[string]*entity.Sale),
		saleSeq:      make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := &state{
		items:        make(map[string]*entity.StockItem, len(s.items)),
		reservations: make(map[string]*entity.StockReservation, len(s.reservations)),
		movements:    make([]*entity.StockMovement, len(s.movements)),
		sales:        make(map[string]*entity.Sale, len(s.sales)),
		saleSeq:      make(map[string]int64, len(s.saleSeq)),
		outbox:       make([]*entity.OutboxEvent, len(s.outbox)),
	}
	for k, v := range s.items {
		c.items[k] = copyItem(v)
	}
	for k, v := range s.reservations {
		c.reservations[k] = copyReservation(v)
	}
	// los movimientos son inmutables: basta copiar el slice
	copy(c.movements, s.movements)
	copy(c.outbox, s.outbox)
	for k, v := range s.sales {
		c.sales[k] = copySale(v)
	}
	for k, v := range s.saleSeq {
		c.saleSeq[k] = v
	}
	return c
}

// Store es el almacén en memoria. Implementa inventory.TxRunner y sales.TxRunner.
type Store struct {
	mu   sync.Mutex
	data *state
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{data: newState()}
}

// Run ejecuta fn con repositorios sobre una copia del estado. Si fn retorna nil la copia
// reemplaza al estado vigente; si no, se descarta (rollback). Las transacciones se serializan.
func (s *Store) Run(ctx context.Context, fn func(repos repository.Set) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.data.clone()
	if err := fn(newSet(s, tx)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = tx
	return nil
}

// Repos devuelve repositorios sin transacción: cada llamada toma el lock del almacén.
// No se deben usar dentro de un Run (el lock ya está tomado).
func (s *Store) Repos() repository.Set {
	return newSet(s, nil)
}

func newSet(s *Store, tx *state) repository.Set {
	b := base{store: s, tx: tx}
	return repository.Set{
		Items:        &StockItemRepository{base: b},
		Reservations: &ReservationRepository{base: b},
		Movements:    &StockMovementRepository{base: b},
		Sales:        &SaleRepository{base: b},
		Outbox:       &AuditOutboxRepository{base: b},
	}
}

// base resuelve sobre qué estado opera un repositorio: la copia de la transacción o el vigente.
type base struct {
	store *Store
	tx    *state
}

func (b base) with(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.data)
}

func copyItem(v *entity.StockItem) *entity.StockItem {
	c := *v
	return &c
}

func copyReservation(v *entity.StockReservation) *entity.StockReservation {
	c := *v
	return &c
}

func copySale(v *entity.Sale) *entity.Sale {
	c := *v
	c.ReservationIDs = append([]string(nil), v.ReservationIDs...)
	return &c
}

func page[T any](list []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
