// Package node assembles storage, hashing and state options from a Config and commits state
// diffs block by block on top of the last persisted state.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strconv"

	"github.com/NethermindEth/stark-state/core/crypto"
	"github.com/NethermindEth/stark-state/core/fact"
	"github.com/NethermindEth/stark-state/core/state"
	"github.com/NethermindEth/stark-state/db"
	"github.com/NethermindEth/stark-state/db/cached"
	"github.com/NethermindEth/stark-state/db/fallback"
	"github.com/NethermindEth/stark-state/db/pebble"
	"github.com/NethermindEth/stark-state/db/retry"
	"github.com/NethermindEth/stark-state/utils"
	"github.com/sourcegraph/conc"
)

type Node struct {
	cfg      *Config
	log      utils.SimpleLogger
	storage  db.Storage
	ffc      *fact.Context
	opts     []state.Option
	services []service

	onApplied func(blockNumber uint64, modifications int)
}

// New opens the database at cfg.DatabasePath and wraps it with the configured decorators:
// a read-only fallback database, latency metrics, retries and a fact cache, from innermost to
// outermost.
func New(cfg *Config, log utils.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nodeHash, _, err := crypto.ByName(cfg.NodeHash)
	if err != nil {
		return nil, err
	}
	classHash, _, err := crypto.ByName(cfg.ClassHash)
	if err != nil {
		return nil, err
	}
	_, globalHash, err := crypto.ByName(cfg.GlobalHash)
	if err != nil {
		return nil, err
	}

	database, err := pebble.New(cfg.DatabasePath,
		pebble.WithCacheSize(cfg.DBCacheSize),
		pebble.WithMaxOpenFiles(cfg.DBMaxHandles),
		pebble.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	n := &Node{
		cfg:       cfg,
		log:       log,
		onApplied: func(uint64, int) {},
	}

	var storage db.Storage = database
	if cfg.FallbackDBPath != "" {
		remote, err := pebble.New(cfg.FallbackDBPath, pebble.WithReadOnly(), pebble.WithLogger(log))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("open fallback database: %w", err), database.Close())
		}
		storage = fallback.New(storage, remote, log)
	}
	if cfg.Metrics {
		storage = db.WithListener(storage, makeDBMetrics())
		n.onApplied = makeStateMetrics()

		listener, err := net.Listen("tcp", net.JoinHostPort(cfg.MetricsHost, strconv.Itoa(int(cfg.MetricsPort))))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("listen on metrics address: %w", err), storage.Close())
		}
		n.services = append(n.services, makeMetrics(listener))
	}
	if cfg.RetryMaxElapsed > 0 {
		storage = retry.New(storage, cfg.RetryMaxElapsed, log)
	}
	if cfg.FactCacheSize > 0 {
		cache, err := cached.New(storage, cfg.FactCacheSize)
		if err != nil {
			return nil, errors.Join(err, storage.Close())
		}
		storage = cache
	}

	n.storage = storage
	n.ffc = fact.NewContext(storage, nodeHash)
	n.opts = []state.Option{
		state.WithConcurrency(cfg.Concurrency),
		state.WithLogger(log),
		state.WithHashes(classHash, globalHash),
	}
	return n, nil
}

func (n *Node) Config() Config {
	return *n.cfg
}

// Latest returns the last committed state, or the empty state if nothing was committed yet.
// committed reports which of the two it is.
func (n *Node) Latest(ctx context.Context) (s *state.SharedState, committed bool, err error) {
	header, err := state.LoadHeader(ctx, n.storage)
	if err == nil {
		return state.FromHeader(header, n.opts...), true, nil
	}
	if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, false, fmt.Errorf("load state header: %w", err)
	}

	blockInfo := state.EmptyBlockInfo(&n.cfg.SequencerAddress, n.cfg.UseKZGDA)
	s, err = state.Empty(ctx, n.ffc, blockInfo, n.opts...)
	if err != nil {
		return nil, false, err
	}
	return s, false, nil
}

// Apply commits diff as the block following the latest one and persists the new state header.
func (n *Node) Apply(ctx context.Context, diff *state.Diff, timestamp uint64) (*state.SharedState, error) {
	latest, committed, err := n.Latest(ctx)
	if err != nil {
		return nil, err
	}

	blockInfo := latest.BlockInfo
	if committed {
		blockInfo.BlockNumber++
	}
	blockInfo.BlockTimestamp = timestamp

	next, err := latest.ApplyStateUpdates(ctx, n.ffc, diff, blockInfo)
	if err != nil {
		return nil, fmt.Errorf("apply block %d: %w", blockInfo.BlockNumber, err)
	}
	if err = state.StoreHeader(ctx, n.storage, next); err != nil {
		return nil, fmt.Errorf("store state header: %w", err)
	}

	root := next.GlobalRoot()
	n.log.Infow("Applied block", "number", blockInfo.BlockNumber, "root", root.String())
	n.onApplied(blockInfo.BlockNumber, len(diff.ClassHashes)+len(diff.Nonces)+len(diff.StorageUpdates))
	return next, nil
}

// Reader reads s through the node's storage.
func (n *Node) Reader(s *state.SharedState) *state.StateReader {
	return state.NewStateReader(s, n.ffc)
}

// Run runs task while serving the configured services. Services are stopped once task returns.
func (n *Node) Run(ctx context.Context, task func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := conc.NewWaitGroup()
	for _, s := range n.services {
		wg.Go(func() {
			if err := s.Run(ctx); err != nil {
				n.log.Errorw("Service error", "name", reflect.TypeOf(s), "err", err)
				cancel()
			}
		})
	}
	defer wg.Wait()

	err := task(ctx)
	cancel()
	return err
}

func (n *Node) Close() error {
	return n.storage.Close()
}
