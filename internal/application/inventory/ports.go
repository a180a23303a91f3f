package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace rollback de todo lo escrito (ítems, reservas, movimientos y ventas).
// La implementación puede reintentar fn completa ante conflictos de serialización.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos repository.Set) error) error
}

// Locker adquiere un lock distribuido con vencimiento (una réplica por barrido).
// ok=false sin error significa que otro proceso tiene el lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}
