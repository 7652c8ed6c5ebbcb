// Package redis provides a transaction store that survives process restarts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic retries when a watched key changes under us
const maxTxRetries = 16

// TransactionStore keeps each transaction as a JSON value, plus a set of
// pending ids and a sorted set of finished ids scored by completion time
type TransactionStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

var _ payment.Store = (*TransactionStore)(nil)

func NewTransactionStore(client *redis.Client, prefix string, logger *slog.Logger) *TransactionStore {
	return &TransactionStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *TransactionStore) txKey(id string) string {
	return fmt.Sprintf("%s:tx:%s", s.prefix, id)
}

func (s *TransactionStore) pendingKey() string {
	return s.prefix + ":tx:pending"
}

func (s *TransactionStore) finishedKey() string {
	return s.prefix + ":tx:finished"
}

// completionScore orders finished transactions by completion time in milliseconds
func completionScore(tx *payment.Transaction) float64 {
	if tx.CompletedAt == nil {
		return 0
	}
	return float64(tx.CompletedAt.UnixMilli())
}

// writeIndexed queues the value write and keeps both indexes in step with the state
func (s *TransactionStore) writeIndexed(ctx context.Context, pipe redis.Pipeliner, tx *payment.Transaction, data []byte) {
	pipe.Set(ctx, s.txKey(tx.ID), data, 0)
	if tx.IsPending() {
		pipe.SAdd(ctx, s.pendingKey(), tx.ID)
		return
	}
	pipe.SRem(ctx, s.pendingKey(), tx.ID)
	pipe.ZAdd(ctx, s.finishedKey(), redis.Z{Score: completionScore(tx), Member: tx.ID})
}

// watch retries fn while the watched key keeps changing
func (s *TransactionStore) watch(ctx context.Context, key string, fn func(*redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debug("Redis optimistic transaction conflict, retrying", "key", key, "attempt", i+1)
	}
	return fmt.Errorf("redis transaction on %s: too many conflicts", key)
}

func (s *TransactionStore) Create(ctx context.Context, tx *payment.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}

	key := s.txKey(tx.ID)
	err = s.watch(ctx, key, func(rtx *redis.Tx) error {
		exists, err := rtx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return payment.ErrDuplicateTransaction{ID: tx.ID}
		}
		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.writeIndexed(ctx, pipe, tx, data)
			return nil
		})
		return err
	})
	if err != nil {
		var dup payment.ErrDuplicateTransaction
		if errors.As(err, &dup) {
			return err
		}
		s.logger.Error("Failed to create transaction", "transaction_id", tx.ID, "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func decodeTransaction(raw string) (*payment.Transaction, error) {
	var tx payment.Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return &tx, nil
}

func (s *TransactionStore) Get(ctx context.Context, id string) (*payment.Transaction, error) {
	raw, err := s.client.Get(ctx, s.txKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, payment.ErrTransactionNotFound{ID: id}
		}
		s.logger.Error("Failed to get transaction", "transaction_id", id, "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return decodeTransaction(raw)
}

// Update reads, mutates and writes the record under WATCH, so a concurrent
// writer forces a retry instead of being overwritten
func (s *TransactionStore) Update(ctx context.Context, id string, fn func(tx *payment.Transaction) error) (*payment.Transaction, error) {
	key := s.txKey(id)
	var updated *payment.Transaction

	err := s.watch(ctx, key, func(rtx *redis.Tx) error {
		raw, err := rtx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return payment.ErrTransactionNotFound{ID: id}
			}
			return err
		}
		tx, err := decodeTransaction(raw)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		data, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("failed to encode transaction: %w", err)
		}
		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.writeIndexed(ctx, pipe, tx, data)
			return nil
		})
		if err != nil {
			return err
		}
		updated = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *TransactionStore) ListPending(ctx context.Context) ([]*payment.Transaction, error) {
	ids, err := s.client.SMembers(ctx, s.pendingKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	pending := make([]*payment.Transaction, 0, len(ids))
	if len(ids) == 0 {
		return pending, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.txKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transactions: %w", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// index entry outlived its record
			s.logger.Warn("Pending index references missing transaction", "transaction_id", ids[i])
			continue
		}
		tx, err := decodeTransaction(raw)
		if err != nil {
			s.logger.Error("Skipping undecodable transaction", "transaction_id", ids[i], "error", err)
			continue
		}
		if tx.IsPending() {
			pending = append(pending, tx)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

func (s *TransactionStore) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.finishedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list finished transactions: %w", err)
	}
	return ids, nil
}

func (s *TransactionStore) Delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, s.txKey(id))
		pipe.SRem(ctx, s.pendingKey(), id)
		pipe.ZRem(ctx, s.finishedKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if deleted.Val() == 0 {
		return payment.ErrTransactionNotFound{ID: id}
	}
	return nil
}
