package crypto

import (
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	pedersenhash "github.com/consensys/gnark-crypto/ecc/stark-curve/pedersen-hash"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const pedersenCacheSize = 1 << 16

type pairKey struct {
	x, y felt.Felt
}

// Sibling hashes along the upper levels of a tree repeat across consecutive updates, so
// node hashing goes through a bounded memo.
var pedersenCache, _ = lru.New[pairKey, felt.Felt](pedersenCacheSize)

var pedersenCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stark_state",
	Name:      "pedersen_cache_lookups_total",
	Help:      "Pedersen memo lookups partitioned by hit.",
}, []string{"hit"})

// PedersenArray implements [Pedersen array hashing].
//
// [Pedersen array hashing]: https://docs.starknet.io/documentation/develop/Hashing/hash-functions/#array_hashing
func PedersenArray(elems ...*felt.Felt) *felt.Felt {
	var digest PedersenDigest
	return digest.Update(elems...).Finish()
}

// Pedersen implements the [Pedersen hash].
//
// [Pedersen hash]: https://docs.starknet.io/documentation/develop/Hashing/hash-functions/#pedersen_hash
func Pedersen(a, b *felt.Felt) *felt.Felt {
	key := pairKey{x: *a, y: *b}
	if res, ok := pedersenCache.Get(key); ok {
		pedersenCacheLookups.WithLabelValues("true").Inc()
		return &res
	}

	hash := pedersenhash.Pedersen(a.Impl(), b.Impl())
	result := felt.NewFelt(&hash)
	pedersenCache.Add(key, *result)
	pedersenCacheLookups.WithLabelValues("false").Inc()
	return result
}

var _ Digest = (*PedersenDigest)(nil)

type PedersenDigest struct {
	digest fp.Element
	count  uint64
}

func (d *PedersenDigest) Update(elems ...*felt.Felt) Digest {
	for idx := range elems {
		d.digest = pedersenhash.Pedersen(&d.digest, elems[idx].Impl())
	}
	d.count += uint64(len(elems))
	return d
}

func (d *PedersenDigest) Finish() *felt.Felt {
	d.digest = pedersenhash.Pedersen(&d.digest, new(fp.Element).SetUint64(d.count))
	return felt.NewFelt(&d.digest)
}
