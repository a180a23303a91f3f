package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/inventario-reservas/pkg/logger"
)

// Task es el trabajo periódico. Debe respetar la cancelación de ctx.
type Task func(ctx context.Context)

// Handle permite detener una tarea programada.
type Handle struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Stop cancela la tarea y espera a que terminen las ejecuciones en curso.
// Detener el scheduler no afecta los datos ya confirmados.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	h.wg.Wait()
}

// Every ejecuta task cada interval hasta que ctx se cancele o se llame Stop.
// Cada tick corre en su propia goroutine: si uno tarda más que el intervalo, el siguiente
// arranca igual y la tarea decide si omitirse.
func Every(ctx context.Context, name string, interval time.Duration, task Task, log *logger.Logger) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("scheduler")

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Info().Str("task", name).Dur("interval", interval).Msg("tarea programada iniciada")
		for {
			select {
			case <-ctx.Done():
				log.Info().Str("task", name).Msg("tarea programada detenida")
				return
			case <-ticker.C:
				h.wg.Add(1)
				go func() {
					defer h.wg.Done()
					defer func() {
						if r := recover(); r != nil {
							log.Error().Str("task", name).Interface("panic", r).Msg("tarea programada en pánico")
						}
					}()
					task(ctx)
				}()
			}
		}
	}()
	return h
}
