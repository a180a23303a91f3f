package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-reservas/internal/application/audit"
	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// Reserva con vencimiento en el pasado: el tick la deja EXPIRED, escribe un RELEASE
// y la cantidad del ítem no cambia.
func TestSweeperTick_VenceReservaPasada(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	ctx := context.Background()
	item := f.createItem(t, "TV-55", 10, "")
	past := time.Now().Add(-time.Second).UTC()
	res, err := f.reservations.Reserve(ctx, testActor, item.ID, dec(4), &past)
	require.NoError(t, err)

	sweeper := inventory.NewExpirySweeper(f.reservations, nil, inventory.SweeperConfig{}, nil, nil)
	result, ran := sweeper.Tick(ctx)
	require.True(t, ran)
	assert.Equal(t, 1, result.Expired)

	assert.Equal(t, entity.ReservationStatusExpired, f.reservation(t, res.ID).Status)
	assert.True(t, f.item(t, item.ID).Quantity.Equal(dec(10)))

	movs := f.movements(t, item.ID)
	require.Len(t, movs, 3)
	release := movs[0]
	assert.Equal(t, entity.MovementTypeRelease, release.Type)
	assert.Equal(t, true, release.Metadata["expired"])
	assert.Equal(t, "system", release.CreatedBy)
	assert.Contains(t, f.sink.actions(), "reservation.expire")
}

// Una reserva que no se puede vencer no frena a las demás y se reintenta en el siguiente barrido.
func TestSweeperTick_FallaDeUnaReservaNoBloqueaLasDemas(t *testing.T) {
	f := newFixture(t, audit.PolicyFailClosed)
	ctx := context.Background()
	past := time.Now().Add(-time.Second).UTC()
	itemA := f.createItem(t, "TV-55", 10, "")
	itemB := f.createItem(t, "TV-65", 10, "")
	resA, err := f.reservations.Reserve(ctx, testActor, itemA.ID, dec(2), &past)
	require.NoError(t, err)
	resB, err := f.reservations.Reserve(ctx, testActor, itemB.ID, dec(3), &past)
	require.NoError(t, err)

	sweeper := inventory.NewExpirySweeper(f.reservations, nil, inventory.SweeperConfig{}, nil, nil)

	f.runner.failFor(errOutboxDown, resA.ID)
	result, ran := sweeper.Tick(ctx)
	require.True(t, ran)
	assert.Equal(t, inventory.ExpireResult{Expired: 1, Failed: 1}, result)
	assert.Equal(t, entity.ReservationStatusActive, f.reservation(t, resA.ID).Status)
	assert.Equal(t, entity.ReservationStatusExpired, f.reservation(t, resB.ID).Status)
	assert.Len(t, f.movements(t, itemA.ID), 2, "el vencimiento fallido no deja RELEASE")

	f.runner.setFail(errOutboxDown)
	result, _ = sweeper.Tick(ctx)
	assert.Equal(t, inventory.ExpireResult{Failed: 1}, result)

	f.runner.setFail(nil)
	result, _ = sweeper.Tick(ctx)
	assert.Equal(t, inventory.ExpireResult{Expired: 1}, result)
	assert.Equal(t, entity.ReservationStatusExpired, f.reservation(t, resA.ID).Status)
	assert.True(t, f.item(t, itemA.ID).Quantity.Equal(dec(10)))
}

func TestSweeperTick_ConLockTomadoSeOmite(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	ctx := context.Background()
	item := f.createItem(t, "TV-55", 10, "")
	past := time.Now().Add(-time.Second).UTC()
	res, err := f.reservations.Reserve(ctx, testActor, item.ID, dec(1), &past)
	require.NoError(t, err)

	locker := &stubLocker{held: true}
	sweeper := inventory.NewExpirySweeper(f.reservations, locker, inventory.SweeperConfig{}, nil, nil)
	_, ran := sweeper.Tick(ctx)
	assert.False(t, ran)
	assert.Equal(t, entity.ReservationStatusActive, f.reservation(t, res.ID).Status)

	locker.held = false
	_, ran = sweeper.Tick(ctx)
	assert.True(t, ran)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released, "el lock se libera al terminar el barrido")
	assert.Equal(t, entity.ReservationStatusExpired, f.reservation(t, res.ID).Status)
}

func TestSweeperTick_ErrorDeLockNoPropaga(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	locker := &stubLocker{err: errors.New("redis caído")}
	sweeper := inventory.NewExpirySweeper(f.reservations, locker, inventory.SweeperConfig{}, nil, nil)

	_, ran := sweeper.Tick(context.Background())
	assert.False(t, ran)
}

// blockingLocker retiene el primer tick dentro de TryLock hasta que se cierre release.
type blockingLocker struct {
	entered chan struct{}
	release chan struct{}
}

func (l *blockingLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	close(l.entered)
	<-l.release
	return func(context.Context) error { return nil }, true, nil
}

func TestSweeperTick_NoSeSolapa(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	locker := &blockingLocker{entered: make(chan struct{}), release: make(chan struct{})}
	sweeper := inventory.NewExpirySweeper(f.reservations, locker, inventory.SweeperConfig{}, nil, nil)

	done := make(chan bool)
	go func() {
		_, ran := sweeper.Tick(context.Background())
		done <- ran
	}()
	<-locker.entered

	_, ran := sweeper.Tick(context.Background())
	assert.False(t, ran, "un tick en curso bloquea el siguiente")

	close(locker.release)
	assert.True(t, <-done)
}
