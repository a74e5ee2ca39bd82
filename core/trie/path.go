package trie

import (
	"encoding/binary"

	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/bits-and-blooms/bitset"
)

// Path is a string of at most MaxHeight bits, read from the most significant bit. Bit i of the
// bitset is bit i of the path's integer value.
type Path struct {
	len    uint8
	bitSet *bitset.BitSet
}

// NewPath returns the length-bit path whose integer value is value.
func NewPath(value *felt.Felt, length uint8) Path {
	b := value.Bytes()
	words := make([]uint64, felt.Limbs)
	for i := range felt.Limbs {
		words[i] = binary.BigEndian.Uint64(b[felt.Bytes-8*(i+1) : felt.Bytes-8*i])
	}
	return Path{len: length, bitSet: bitset.From(words)}
}

func (p Path) Len() uint8 {
	return p.len
}

// Test reports whether bit i, counted from the least significant end, is set.
func (p Path) Test(i uint8) bool {
	return p.bitSet != nil && p.bitSet.Test(uint(i))
}

// MSB returns the first bit of the path.
func (p Path) MSB() bool {
	return p.Test(p.len - 1)
}

// Tail drops the first bit.
func (p Path) Tail() Path {
	if p.len == 0 {
		return p
	}
	tail := Path{len: p.len - 1, bitSet: p.clone()}
	tail.bitSet.Clear(uint(p.len - 1))
	return tail
}

// Prepend returns the path with bit in front of the current first bit.
func (p Path) Prepend(bit bool) Path {
	longer := Path{len: p.len + 1, bitSet: p.clone()}
	longer.bitSet.SetTo(uint(p.len), bit)
	return longer
}

func (p Path) clone() *bitset.BitSet {
	if p.bitSet == nil {
		return bitset.New(felt.Bits)
	}
	return p.bitSet.Clone()
}

// Felt returns the integer value of the path.
func (p Path) Felt() felt.Felt {
	var b [felt.Bytes]byte
	if p.bitSet != nil {
		for i, word := range p.bitSet.Bytes() {
			if i >= felt.Limbs {
				break
			}
			binary.BigEndian.PutUint64(b[felt.Bytes-8*(i+1):felt.Bytes-8*i], word)
		}
	}
	return *felt.FromBytes(b[:])
}

func (p Path) Equal(other Path) bool {
	if p.len != other.len {
		return false
	}
	for i := range p.len {
		if p.Test(i) != other.Test(i) {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	bits := make([]byte, p.len)
	for i := range p.len {
		bits[i] = '0'
		if p.Test(p.len - 1 - i) {
			bits[i] = '1'
		}
	}
	return string(bits)
}
