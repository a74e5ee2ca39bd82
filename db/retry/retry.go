// Package retry retries transient fact store failures with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/NethermindEth/stark-state/db"
	"github.com/NethermindEth/stark-state/utils"
	"github.com/cenkalti/backoff/v4"
)

var _ db.Storage = (*Storage)(nil)

type Storage struct {
	db.Storage
	maxElapsed time.Duration
	log        utils.SimpleLogger
}

// New retries every failing call on storage until maxElapsed has passed. Missing keys and
// context errors are returned immediately.
func New(storage db.Storage, maxElapsed time.Duration, log utils.SimpleLogger) *Storage {
	return &Storage{Storage: storage, maxElapsed: maxElapsed, log: log}
}

func (s *Storage) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = s.maxElapsed
	return backoff.WithContext(b, ctx)
}

func (s *Storage) notify(op string) backoff.Notify {
	return func(err error, wait time.Duration) {
		s.log.Warnw("Storage call failed, retrying", "op", op, "err", err, "wait", wait)
	}
}

func classify(err error) error {
	if errors.Is(err, db.ErrKeyNotFound) || errors.Is(err, db.ErrClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	return err
}

func (s *Storage) Get(ctx context.Context, key []byte) ([]byte, error) {
	return backoff.RetryNotifyWithData(func() ([]byte, error) {
		val, err := s.Storage.Get(ctx, key)
		return val, classify(err)
	}, s.policy(ctx), s.notify("get"))
}

func (s *Storage) GetMany(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	return backoff.RetryNotifyWithData(func() (map[string][]byte, error) {
		vals, err := s.Storage.GetMany(ctx, keys)
		return vals, classify(err)
	}, s.policy(ctx), s.notify("get_many"))
}

func (s *Storage) Put(ctx context.Context, key, value []byte) error {
	return backoff.RetryNotify(func() error {
		return classify(s.Storage.Put(ctx, key, value))
	}, s.policy(ctx), s.notify("put"))
}

func (s *Storage) PutMany(ctx context.Context, entries map[string][]byte) error {
	return backoff.RetryNotify(func() error {
		return classify(s.Storage.PutMany(ctx, entries))
	}, s.policy(ctx), s.notify("put_many"))
}
