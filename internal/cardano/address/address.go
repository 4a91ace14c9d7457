package address

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/go-openapi/swag"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// Shelley address header high nibbles (key-hash credentials only, scripts are
// not a concern of this vault).
const (
	headerBase       = 0x00
	headerEnterprise = 0x60
	headerReward     = 0xe0
)

// keyHashSize is the size of a blake2b-224 credential hash.
const keyHashSize = 28

// Network selects the address network id and human-readable parts.
type Network struct {
	ID        byte
	AddrHRP   string
	RewardHRP string
}

var (
	Mainnet = Network{ID: 1, AddrHRP: "addr", RewardHRP: "stake"}
	Testnet = Network{ID: 0, AddrHRP: "addr_test", RewardHRP: "stake_test"}
)

var testnetNames = []string{"testnet", "preprod", "preview"}

// NetworkFromString maps a configured network name onto its parameters,
// case-insensitively.
func NetworkFromString(name string) (Network, error) {
	if swag.ContainsStringsCI([]string{"mainnet"}, name) {
		return Mainnet, nil
	}

	if swag.ContainsStringsCI(testnetNames, name) {
		return Testnet, nil
	}

	return Network{}, errors.Errorf("unknown network: %s", name)
}

// Address is a constructed address in raw and bech32 form.
type Address struct {
	Bytes  []byte
	Bech32 string
}

// Hex returns the raw byte representation as a hex string.
func (a Address) Hex() string {
	return hex.EncodeToString(a.Bytes)
}

// KeyHash returns the blake2b-224 hash of the given verification key.
func KeyHash(publicKey []byte) ([]byte, error) {
	h, err := blake2b.New(keyHashSize, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create blake2b hasher")
	}

	if _, err := h.Write(publicKey); err != nil {
		return nil, errors.Wrap(err, "failed to hash public key")
	}

	return h.Sum(nil), nil
}

// Base constructs a base address binding the payment credential to the stake
// credential.
func Base(net Network, paymentKey []byte, stakeKey []byte) (Address, error) {
	payHash, err := KeyHash(paymentKey)
	if err != nil {
		return Address{}, err
	}

	stakeHash, err := KeyHash(stakeKey)
	if err != nil {
		return Address{}, err
	}

	raw := make([]byte, 0, 1+2*keyHashSize)
	raw = append(raw, headerBase|net.ID)
	raw = append(raw, payHash...)
	raw = append(raw, stakeHash...)

	return encode(net.AddrHRP, raw)
}

// Enterprise constructs an address carrying only the payment credential.
func Enterprise(net Network, paymentKey []byte) (Address, error) {
	payHash, err := KeyHash(paymentKey)
	if err != nil {
		return Address{}, err
	}

	raw := make([]byte, 0, 1+keyHashSize)
	raw = append(raw, headerEnterprise|net.ID)
	raw = append(raw, payHash...)

	return encode(net.AddrHRP, raw)
}

// Reward constructs the reward (stake) address for the stake credential.
func Reward(net Network, stakeKey []byte) (Address, error) {
	stakeHash, err := KeyHash(stakeKey)
	if err != nil {
		return Address{}, err
	}

	raw := make([]byte, 0, 1+keyHashSize)
	raw = append(raw, headerReward|net.ID)
	raw = append(raw, stakeHash...)

	return encode(net.RewardHRP, raw)
}

func encode(hrp string, raw []byte) (Address, error) {
	converted, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return Address{}, errors.Wrap(err, "failed to regroup address bits")
	}

	encoded, err := bech32.Encode(hrp, converted)
	if err != nil {
		return Address{}, errors.Wrap(err, "failed to bech32 encode address")
	}

	return Address{Bytes: raw, Bech32: encoded}, nil
}
