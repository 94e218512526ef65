// Package redis stores the server of record's entities in Redis.
//
// Each entity is a JSON string under "jg:{kind}:{id}"; a sorted set
// "jg:{kind}:owner:{ownerID}" indexes an owner's entities by updatedAt.
// Writes run under WATCH so concurrent writers of one entity never interleave.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

const (
	keyPrefix    = "jg"
	maxTxRetries = 16
)

// ErrContention is returned when a write keeps losing optimistic races
var ErrContention = errors.New("record is being written concurrently")

// Connect opens a client for redisURL and checks it responds
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// Collection implements output.RecordStore for one entity kind
type Collection[T model.Entity] struct {
	client *goredis.Client
	kind   model.Kind
}

var _ output.RecordStore[journey.Journey] = (*Collection[journey.Journey])(nil)

// NewCollection creates a collection of kind on client
func NewCollection[T model.Entity](client *goredis.Client, kind model.Kind) *Collection[T] {
	return &Collection[T]{client: client, kind: kind}
}

func (c *Collection[T]) key(id string) string {
	return keyPrefix + ":" + string(c.kind) + ":" + id
}

func (c *Collection[T]) ownerKey(owner string) string {
	return keyPrefix + ":" + string(c.kind) + ":owner:" + owner
}

func score(entity model.Entity) float64 {
	return float64(entity.LastUpdated().UnixMilli())
}

// Get retrieves a record
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return zero, output.ErrRecordNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("get %s %s: %w", c.kind, id, err)
	}
	return c.decode(raw)
}

// ListByOwner retrieves an owner's records, most recently updated first
func (c *Collection[T]) ListByOwner(ctx context.Context, ownerID string) ([]T, error) {
	ids, err := c.client.ZRevRange(ctx, c.ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s of %s: %w", c.kind, ownerID, err)
	}
	out := make([]T, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s of %s: %w", c.kind, ownerID, err)
	}
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// deleted between the two reads
			continue
		}
		item, err := c.decode([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Insert stores a new record
func (c *Collection[T]) Insert(ctx context.Context, entity T) error {
	key := c.key(entity.EntityID())
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.kind, err)
	}
	return c.watch(ctx, key, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return output.ErrRecordExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, c.ownerKey(entity.Owner()), goredis.Z{Score: score(entity), Member: entity.EntityID()})
			return nil
		})
		return err
	})
}

// Mutate replaces a record with fn's result, retrying when another writer
// touched it in between
func (c *Collection[T]) Mutate(ctx context.Context, id string, fn output.MutateFunc[T]) (T, error) {
	var result T
	key := c.key(id)
	err := c.watch(ctx, key, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return output.ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		current, err := c.decode(raw)
		if err != nil {
			return err
		}

		next, write, err := fn(current)
		if err != nil {
			return err
		}
		if !write {
			result = current
			return nil
		}
		if next.EntityID() != id {
			return fmt.Errorf("mutate %s %s: id changed to %s", c.kind, id, next.EntityID())
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.kind, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if current.Owner() != next.Owner() {
				pipe.ZRem(ctx, c.ownerKey(current.Owner()), id)
			}
			pipe.ZAdd(ctx, c.ownerKey(next.Owner()), goredis.Z{Score: score(next), Member: id})
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	})
	return result, err
}

// Delete removes a record
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	key := c.key(id)
	return c.watch(ctx, key, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return output.ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		current, err := c.decode(raw)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, c.ownerKey(current.Owner()), id)
			return nil
		})
		return err
	})
}

// watch runs fn in an optimistic transaction on key
func (c *Collection[T]) watch(ctx context.Context, key string, fn func(tx *goredis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := c.client.Watch(ctx, fn, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%s: %w", key, ErrContention)
}

func (c *Collection[T]) decode(raw []byte) (T, error) {
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, fmt.Errorf("decode %s: %w", c.kind, err)
	}
	return item, nil
}
