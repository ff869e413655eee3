package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const updateRetries = 3

// RedisSignalStore keeps each signal as a JSON string plus one id set per
// status and a creation-ordered index of all ids.
//
//	{prefix}:signal:{id}            JSON signal
//	{prefix}:signals:status:{st}    SET of ids
//	{prefix}:signals:created        ZSET id -> created_at ms
type RedisSignalStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisSignalStore(client *redis.Client, prefix string) *RedisSignalStore {
	if prefix == "" {
		prefix = "signaldesk"
	}
	return &RedisSignalStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisSignalStore) signalKey(id string) string { return s.prefix + ":signal:" + id }
func (s *RedisSignalStore) createdKey() string { return s.prefix + ":signals:created" }
func (s *RedisSignalStore) statusKey(st models.Status) string {
	return s.prefix + ":signals:status:" + string(st)
}

func (s *RedisSignalStore) Insert(ctx context.Context, sig *models.Signal) error {
	if !sig.Status.Valid() {
		return fmt.Errorf("insert: invalid status %q", sig.Status)
	}
	sig.ID = uuid.NewString()
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = s.now().UTC()
	}
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.signalKey(sig.ID), data, 0)
		pipe.SAdd(ctx, s.statusKey(sig.Status), sig.ID)
		pipe.ZAdd(ctx, s.createdKey(), redis.Z{Score: float64(sig.CreatedAt.UnixMilli()), Member: sig.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert %s: %w", sig.ID, err)
	}
	return nil
}

func (s *RedisSignalStore) Get(ctx context.Context, id string) (models.Signal, error) {
	data, err := s.client.Get(ctx, s.signalKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Signal{}, fmt.Errorf("get %s: %w", id, domrepo.ErrNotFound)
	}
	if err != nil {
		return models.Signal{}, fmt.Errorf("get %s: %w", id, err)
	}
	var sig models.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return models.Signal{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return sig, nil
}

// Query loads signals in status, or every signal when status is nil, newest first.
func (s *RedisSignalStore) Query(ctx context.Context, status *models.Status) ([]models.Signal, error) {
	var (
		ids []string
		err error
	)
	if status == nil {
		ids, err = s.client.ZRevRange(ctx, s.createdKey(), 0, -1).Result()
	} else {
		ids, err = s.client.SMembers(ctx, s.statusKey(*status)).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	if len(ids) == 0 {
		return []models.Signal{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.signalKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("query load: %w", err)
	}

	out := make([]models.Signal, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// index entry without a body; skip rather than fail the whole read
			continue
		}
		var sig models.Signal
		if err := json.Unmarshal([]byte(str), &sig); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ids[i], err)
		}
		if status != nil && sig.Status != *status {
			continue
		}
		out = append(out, sig)
	}
	slices.SortFunc(out, newestFirst)
	return out, nil
}

// UpdateStatus is an optimistic compare-and-set: the signal key is WATCHed and
// the write is rejected with ErrConflict when the stored status is terminal.
func (s *RedisSignalStore) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("update %s: invalid status %q", id, status)
	}
	key := s.signalKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("update %s: %w", id, domrepo.ErrNotFound)
		}
		if err != nil {
			return err
		}
		var sig models.Signal
		if err := json.Unmarshal(data, &sig); err != nil {
			return fmt.Errorf("decode %s: %w", id, err)
		}
		if sig.Status.IsTerminal() {
			return fmt.Errorf("update %s from %s to %s: %w", id, sig.Status, status, domrepo.ErrConflict)
		}

		prev := sig.Status
		sig.Status = status
		if status.IsTerminal() {
			t := s.now().UTC()
			sig.ClosedAt = &t
		}
		next, err := json.Marshal(sig)
		if err != nil {
			return fmt.Errorf("marshal signal: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			pipe.SRem(ctx, s.statusKey(prev), id)
			pipe.SAdd(ctx, s.statusKey(status), id)
			return nil
		})
		return err
	}

	for i := 0; i < updateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: concurrent writers: %w", id, domrepo.ErrConflict)
}

func (s *RedisSignalStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ domrepo.SignalStore = (*RedisSignalStore)(nil)
