package crypto

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
)

const (
	poseidonWidth         = 3
	poseidonFullRounds    = 8
	poseidonPartialRounds = 83
	poseidonTotalRounds   = poseidonFullRounds + poseidonPartialRounds
)

// roundConstants[r][i] is sha256("Hades" + decimal(3r+i)) reduced modulo the field prime.
var roundConstants = func() [poseidonTotalRounds][poseidonWidth]fp.Element {
	var constants [poseidonTotalRounds][poseidonWidth]fp.Element
	modulus := fp.Modulus()
	for r := range poseidonTotalRounds {
		for i := range poseidonWidth {
			sum := sha256.Sum256([]byte(fmt.Sprintf("Hades%d", poseidonWidth*r+i)))
			v := new(big.Int).SetBytes(sum[:])
			constants[r][i].SetBigInt(v.Mod(v, modulus))
		}
	}
	return constants
}()

func sbox(x *fp.Element) {
	var sq fp.Element
	sq.Square(x)
	x.Mul(x, &sq)
}

func mixLayer(state *[poseidonWidth]fp.Element) {
	// [3 1 1; 1 -1 1; 1 1 -2]
	var sum, twoA, twoB, threeC fp.Element
	sum.Add(&state[0], &state[1]).Add(&sum, &state[2])
	twoA.Double(&state[0])
	twoB.Double(&state[1])
	threeC.Double(&state[2]).Add(&threeC, &state[2])

	state[0].Add(&sum, &twoA)
	state[1].Sub(&sum, &twoB)
	state[2].Sub(&sum, &threeC)
}

func hadesPermutation(state *[poseidonWidth]fp.Element) {
	const firstPartial = poseidonFullRounds / 2
	const lastPartial = firstPartial + poseidonPartialRounds
	for r := range poseidonTotalRounds {
		for i := range poseidonWidth {
			state[i].Add(&state[i], &roundConstants[r][i])
		}
		if r < firstPartial || r >= lastPartial {
			for i := range poseidonWidth {
				sbox(&state[i])
			}
		} else {
			sbox(&state[poseidonWidth-1])
		}
		mixLayer(state)
	}
}

// Poseidon implements the [Poseidon hash].
//
// [Poseidon hash]: https://docs.starknet.io/architecture-and-concepts/cryptography/hash-functions/#poseidon_hash
func Poseidon(x, y *felt.Felt) *felt.Felt {
	state := [poseidonWidth]fp.Element{*x.Impl(), *y.Impl()}
	state[2].SetUint64(2)
	hadesPermutation(&state)
	return felt.NewFelt(&state[0])
}

// PoseidonArray implements [Poseidon array hashing].
//
// [Poseidon array hashing]: https://docs.starknet.io/architecture-and-concepts/cryptography/hash-functions/#poseidon_array_hash
func PoseidonArray(elems ...*felt.Felt) *felt.Felt {
	var digest PoseidonDigest
	return digest.Update(elems...).Finish()
}

var _ Digest = (*PoseidonDigest)(nil)

type PoseidonDigest struct {
	state   [poseidonWidth]fp.Element
	pending *fp.Element
}

func (d *PoseidonDigest) Update(elems ...*felt.Felt) Digest {
	for idx := range elems {
		if d.pending == nil {
			d.pending = new(fp.Element).Set(elems[idx].Impl())
			continue
		}
		d.absorb(d.pending, elems[idx].Impl())
		d.pending = nil
	}
	return d
}

func (d *PoseidonDigest) absorb(x, y *fp.Element) {
	d.state[0].Add(&d.state[0], x)
	d.state[1].Add(&d.state[1], y)
	hadesPermutation(&d.state)
}

func (d *PoseidonDigest) Finish() *felt.Felt {
	one := new(fp.Element).SetOne()
	if d.pending == nil {
		d.absorb(one, new(fp.Element))
	} else {
		d.absorb(d.pending, one)
		d.pending = nil
	}
	return felt.NewFelt(&d.state[0])
}
