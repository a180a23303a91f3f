package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
)

var _ inventory.Locker = (*Locker)(nil)

// releaseScript borra la clave solo si sigue siendo nuestra (el lock pudo vencer y tomarlo otra réplica).
var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker lock distribuido con vencimiento sobre Redis (SET NX PX + token).
type Locker struct {
	client goredis.UniversalClient
}

// NewLocker construye el locker.
func NewLocker(client goredis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// TryLock intenta tomar key por ttl. ok=false sin error si otro proceso lo tiene.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("redis release %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}

// NewClient crea el cliente y verifica la conexión.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}
