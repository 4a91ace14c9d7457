package keychain

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"
)

// xprvSize is the serialized size of an extended private key:
// 64 bytes of extended secret (kl || kr) followed by the 32-byte chain code.
const xprvSize = 96

// XPrv is an extended Ed25519 private key following the BIP32-Ed25519 (V2)
// derivation scheme used by CIP-1852 wallets.
//
// The key material is zeroized on Free; any use after release fails with
// ErrFreed rather than silently operating on cleared bytes.
type XPrv struct {
	kl        [32]byte // spending scalar (clamped at the root)
	kr        [32]byte // signing nonce extension
	chainCode [32]byte
	freed     bool
}

var _ PrivateKey = (*XPrv)(nil)

// ParseRootKey parses the hex form of a 96-byte extended root key.
func ParseRootKey(rootKeyHex string) (*XPrv, error) {
	raw, err := hex.DecodeString(rootKeyHex)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidRootKey, "not a hex string")
	}

	return NewXPrv(raw)
}

// NewXPrv constructs an extended private key from its 96-byte serialized form.
func NewXPrv(raw []byte) (*XPrv, error) {
	if len(raw) != xprvSize {
		return nil, errors.Wrapf(ErrInvalidRootKey, "expected %d bytes, got %d", xprvSize, len(raw))
	}

	x := &XPrv{}
	copy(x.kl[:], raw[0:32])
	copy(x.kr[:], raw[32:64])
	copy(x.chainCode[:], raw[64:96])

	return x, nil
}

// Derive derives the child extended key at the given index.
func (x *XPrv) Derive(index uint32) (PrivateKey, error) {
	if x.freed {
		return nil, ErrFreed
	}

	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], index)

	var z, cc []byte
	if index >= HardenedOffset {
		z = x.mac(0x00, x.kl[:], x.kr[:], idx[:])
		cc = x.mac(0x01, x.kl[:], x.kr[:], idx[:])
	} else {
		pub, err := x.publicKeyBytes()
		if err != nil {
			return nil, err
		}
		z = x.mac(0x02, pub, idx[:])
		cc = x.mac(0x03, pub, idx[:])
	}

	child := &XPrv{}
	// kl' = kl + 8 * zl (truncated 28-byte zl, 256-bit addition)
	add28Mul8(&child.kl, &x.kl, z[:32])
	// kr' = kr + zr (mod 2^256)
	add256(&child.kr, &x.kr, z[32:64])
	copy(child.chainCode[:], cc[32:64])

	zeroize(z)
	zeroize(cc)

	return child, nil
}

// PublicKey returns the Ed25519 verification key corresponding to kl.
func (x *XPrv) PublicKey() ([]byte, error) {
	if x.freed {
		return nil, ErrFreed
	}

	return x.publicKeyBytes()
}

// Sign produces a standard Ed25519 signature using the extended key form,
// verifiable with crypto/ed25519 against PublicKey().
func (x *XPrv) Sign(message []byte) ([]byte, error) {
	if x.freed {
		return nil, ErrFreed
	}

	pub, err := x.publicKeyBytes()
	if err != nil {
		return nil, err
	}

	// r = H(kr || message) mod L
	h := sha512.New()
	h.Write(x.kr[:])
	h.Write(message)
	r, err := new(edwards25519.Scalar).SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute nonce scalar")
	}

	R := new(edwards25519.Point).ScalarBaseMult(r)

	// k = H(R || A || message) mod L
	h.Reset()
	h.Write(R.Bytes())
	h.Write(pub)
	h.Write(message)
	k, err := new(edwards25519.Scalar).SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute challenge scalar")
	}

	s, err := x.scalar()
	if err != nil {
		return nil, err
	}

	// S = k*s + r mod L
	S := new(edwards25519.Scalar).MultiplyAdd(k, s, r)

	sig := make([]byte, 0, 64)
	sig = append(sig, R.Bytes()...)
	sig = append(sig, S.Bytes()...)

	return sig, nil
}

// Free zeroizes the key material. Releasing an already released handle is a no-op.
func (x *XPrv) Free() {
	if x == nil || x.freed {
		return
	}

	zeroize(x.kl[:])
	zeroize(x.kr[:])
	zeroize(x.chainCode[:])
	x.freed = true
}

// Bytes returns the 96-byte serialized form of the extended key.
func (x *XPrv) Bytes() ([]byte, error) {
	if x.freed {
		return nil, ErrFreed
	}

	out := make([]byte, 0, xprvSize)
	out = append(out, x.kl[:]...)
	out = append(out, x.kr[:]...)
	out = append(out, x.chainCode[:]...)

	return out, nil
}

func (x *XPrv) publicKeyBytes() ([]byte, error) {
	s, err := x.scalar()
	if err != nil {
		return nil, err
	}

	return new(edwards25519.Point).ScalarBaseMult(s).Bytes(), nil
}

// scalar interprets kl as a scalar mod L. The base point has order L, so
// reducing before the multiplication yields the same point as the raw
// 256-bit scalar would.
func (x *XPrv) scalar() (*edwards25519.Scalar, error) {
	var wide [64]byte
	copy(wide[:32], x.kl[:])

	s, err := new(edwards25519.Scalar).SetUniformBytes(wide[:])
	if err != nil {
		return nil, errors.Wrap(err, "failed to interpret key as scalar")
	}

	return s, nil
}

func (x *XPrv) mac(tag byte, parts ...[]byte) []byte {
	m := hmac.New(sha512.New, x.chainCode[:])
	m.Write([]byte{tag})
	for _, p := range parts {
		m.Write(p)
	}

	return m.Sum(nil)
}

// add28Mul8 computes out = kl + 8*zl over 256-bit little-endian integers,
// where zl is truncated to its first 28 bytes per the V2 scheme.
func add28Mul8(out *[32]byte, kl *[32]byte, zl []byte) {
	var carry uint16
	for i := 0; i < 28; i++ {
		r := uint16(kl[i]) + (uint16(zl[i]) << 3) + carry
		out[i] = byte(r)
		carry = r >> 8
	}
	for i := 28; i < 32; i++ {
		r := uint16(kl[i]) + carry
		out[i] = byte(r)
		carry = r >> 8
	}
}

// add256 computes out = a + b over 256-bit little-endian integers.
func add256(out *[32]byte, a *[32]byte, b []byte) {
	var carry uint16
	for i := 0; i < 32; i++ {
		r := uint16(a[i]) + uint16(b[i]) + carry
		out[i] = byte(r)
		carry = r >> 8
	}
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
