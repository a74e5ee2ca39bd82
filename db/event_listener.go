package db

import (
	"context"
	"time"
)

type EventListener interface {
	OnIO(write bool, duration time.Duration)
	OnCommit(duration time.Duration)
}

type SelectiveListener struct {
	OnIOCb     func(write bool, duration time.Duration)
	OnCommitCb func(duration time.Duration)
}

func (l *SelectiveListener) OnIO(write bool, duration time.Duration) {
	if l.OnIOCb != nil {
		l.OnIOCb(write, duration)
	}
}

func (l *SelectiveListener) OnCommit(duration time.Duration) {
	if l.OnCommitCb != nil {
		l.OnCommitCb(duration)
	}
}

var _ Storage = (*listened)(nil)

type listened struct {
	Storage
	listener EventListener
}

// WithListener reports the latency of every call on s to listener. Single reads and writes are
// reported through OnIO, batched writes through OnCommit.
func WithListener(s Storage, listener EventListener) Storage {
	return &listened{Storage: s, listener: listener}
}

func (l *listened) Get(ctx context.Context, key []byte) ([]byte, error) {
	start := time.Now()
	defer func() { l.listener.OnIO(false, time.Since(start)) }()
	return l.Storage.Get(ctx, key)
}

func (l *listened) GetMany(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	start := time.Now()
	defer func() { l.listener.OnIO(false, time.Since(start)) }()
	return l.Storage.GetMany(ctx, keys)
}

func (l *listened) Put(ctx context.Context, key, value []byte) error {
	start := time.Now()
	defer func() { l.listener.OnIO(true, time.Since(start)) }()
	return l.Storage.Put(ctx, key, value)
}

func (l *listened) PutMany(ctx context.Context, entries map[string][]byte) error {
	start := time.Now()
	defer func() { l.listener.OnCommit(time.Since(start)) }()
	return l.Storage.PutMany(ctx, entries)
}
