package keychain

import "github.com/pkg/errors"

// HardenedOffset marks a derivation index as hardened: the child cannot be
// derived from the parent's public key alone.
const HardenedOffset uint32 = 0x80000000

// CIP-1852 constants for the fixed purpose/coin-type prefix and the chain
// roles below the account key.
const (
	PurposeIndex  = 1852
	CoinTypeIndex = 1815

	ExternalChainIndex uint32 = 0
	StakingChainIndex  uint32 = 2
)

var (
	ErrFreed          = errors.New("key material already released")
	ErrInvalidRootKey = errors.New("invalid root key")
)

// Harden flags the given index as hardened.
func Harden(index uint32) uint32 {
	return index | HardenedOffset
}

// PrivateKey is an opaque handle on hierarchical key material. Every handle
// must be released via Free exactly once; all other methods error once the
// handle has been released.
type PrivateKey interface {
	// Derive derives the child key at the given index (hardened if the
	// index carries the hardened offset).
	Derive(index uint32) (PrivateKey, error)

	// PublicKey returns the 32-byte Ed25519 verification key.
	PublicKey() ([]byte, error)

	// Sign produces a 64-byte Ed25519 signature over the message.
	Sign(message []byte) ([]byte, error)

	// Free zeroizes and releases the key material. Free is idempotent.
	Free()
}
