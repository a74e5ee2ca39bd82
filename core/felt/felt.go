package felt

import (
	"errors"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/fxamacker/cbor/v2"
)

// Felt is an element of the StarkNet prime field. Node hashes, tree indices and every value
// stored in the state commitment are Felts.
type Felt struct {
	val fp.Element
}

func NewFelt(element *fp.Element) *Felt {
	return &Felt{
		val: *element,
	}
}

// FromUint64 returns a new Felt holding v.
func FromUint64(v uint64) *Felt {
	return new(Felt).SetUint64(v)
}

// FromBytes interprets b as a big-endian integer reduced modulo the field prime.
func FromBytes(b []byte) *Felt {
	return new(Felt).SetBytes(b)
}

const (
	Limbs = fp.Limbs // number of 64 bits words needed to represent a Element
	Bits  = fp.Bits  // number of bits needed to represent a Element
	Bytes = fp.Bytes // number of bytes needed to represent a Element
)

// zero felt constant
var Zero = Felt{}

var ErrNotCanonical = errors.New("value is not a canonical field element")

var bigIntPool = sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

// Impl returns the underlying field element type
func (z *Felt) Impl() *fp.Element {
	return &z.val
}

// UnmarshalJSON accepts numbers and strings as input.
// See Element.SetString for valid prefixes (0x, 0b, ...).
// If there is an error, we try to explicitly unmarshal from hex before
// returning an error.
func (z *Felt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) > fp.Bits*3 {
		return errors.New("value too large (max = Element.Bits * 3)")
	}

	// we accept numbers and strings, remove leading and trailing quotes if any
	if len(s) > 0 && s[0] == '"' {
		s = s[1:]
	}
	if len(s) > 0 && s[len(s)-1] == '"' {
		s = s[:len(s)-1]
	}

	vv := bigIntPool.Get().(*big.Int)
	defer bigIntPool.Put(vv)

	if _, ok := vv.SetString(s, 0); !ok {
		if _, ok := vv.SetString(s, 16); !ok {
			return errors.New("can't parse into a big.Int: " + s)
		}
	}

	z.val.SetBigInt(vv)
	return nil
}

// MarshalJSON forwards the call to underlying field element implementation
func (z *Felt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + z.String() + `"`), nil
}

// UnmarshalText lets Felts be used as JSON object keys and config values.
func (z *Felt) UnmarshalText(text []byte) error {
	_, err := z.SetString(string(text))
	return err
}

// MarshalText is the inverse of UnmarshalText.
func (z Felt) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

// MarshalCBOR encodes the Felt as a CBOR byte string of its canonical big-endian form.
func (z Felt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(z.Marshal())
}

// UnmarshalCBOR rejects byte strings that are not canonical field elements.
func (z *Felt) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	return z.SetBytesCanonical(b)
}

// SetBytes forwards the call to underlying field element implementation
func (z *Felt) SetBytes(e []byte) *Felt {
	z.val.SetBytes(e)
	return z
}

// SetBytesCanonical sets z to e, returning ErrNotCanonical if e is not exactly
// Bytes long or encodes a value larger than the field prime.
func (z *Felt) SetBytesCanonical(e []byte) error {
	if len(e) != Bytes {
		return ErrNotCanonical
	}
	if err := z.val.SetBytesCanonical(e); err != nil {
		return ErrNotCanonical
	}
	return nil
}

// SetString forwards the call to underlying field element implementation
func (z *Felt) SetString(number string) (*Felt, error) {
	_, err := z.val.SetString(number)
	return z, err
}

// SetUint64 forwards the call to underlying field element implementation
func (z *Felt) SetUint64(v uint64) *Felt {
	z.val.SetUint64(v)
	return z
}

// SetBigInt reduces v modulo the field prime.
func (z *Felt) SetBigInt(v *big.Int) *Felt {
	z.val.SetBigInt(v)
	return z
}

// BigInt writes the regular (non-Montgomery) value of z into res.
func (z *Felt) BigInt(res *big.Int) *big.Int {
	return z.val.BigInt(res)
}

// SetRandom forwards the call to underlying field element implementation
func (z *Felt) SetRandom() (*Felt, error) {
	_, err := z.val.SetRandom()
	return z, err
}

// String returns the 0x-prefixed hex form without leading zeros.
func (z *Felt) String() string {
	return "0x" + z.val.Text(16)
}

// ShortString abbreviates long values for log lines.
func (z *Felt) ShortString() string {
	hex := z.val.Text(16)
	if len(hex) <= 8 {
		return "0x" + hex
	}
	return "0x" + hex[:4] + "..." + hex[len(hex)-4:]
}

// Text forwards the call to underlying field element implementation
func (z *Felt) Text(base int) string {
	return z.val.Text(base)
}

// Equal forwards the call to underlying field element implementation
func (z *Felt) Equal(x *Felt) bool {
	return z.val.Equal(&x.val)
}

// Marshal returns the canonical 32 byte big-endian encoding.
func (z *Felt) Marshal() []byte {
	return z.val.Marshal()
}

// Bytes forwards the call to underlying field element implementation
func (z *Felt) Bytes() [32]byte {
	return z.val.Bytes()
}

// IsOne forwards the call to underlying field element implementation
func (z *Felt) IsOne() bool {
	return z.val.IsOne()
}

// IsZero forwards the call to underlying field element implementation
func (z *Felt) IsZero() bool {
	return z.val.IsZero()
}

// Add forwards the call to underlying field element implementation
func (z *Felt) Add(x, y *Felt) *Felt {
	z.val.Add(&x.val, &y.val)
	return z
}

// Sub forwards the call to underlying field element implementation
func (z *Felt) Sub(x, y *Felt) *Felt {
	z.val.Sub(&x.val, &y.val)
	return z
}

// Cmp compares the regular values of z and x.
func (z *Felt) Cmp(x *Felt) int {
	return z.val.Cmp(&x.val)
}
