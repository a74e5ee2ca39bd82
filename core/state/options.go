package state

import (
	"github.com/NethermindEth/stark-state/core/crypto"
	"github.com/NethermindEth/stark-state/utils"
)

type config struct {
	concurrency int
	log         utils.SimpleLogger
	classHash   crypto.HashFunc
	globalHash  crypto.ArrayHashFunc
}

func defaultConfig() *config {
	return &config{
		concurrency: 1,
		log:         utils.NewNopZapLogger(),
		classHash:   crypto.Poseidon,
		globalHash:  crypto.PoseidonArray,
	}
}

type Option func(*config)

// WithConcurrency updates up to n contract storage trees at a time. The storage behind the
// fact context must be safe for concurrent use when n > 1.
func WithConcurrency(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithLogger(log utils.SimpleLogger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithHashes replaces the class tree node hash and the global root hash.
func WithHashes(class crypto.HashFunc, global crypto.ArrayHashFunc) Option {
	return func(c *config) {
		c.classHash = class
		c.globalHash = global
	}
}

func newConfig(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
