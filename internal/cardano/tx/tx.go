// Package tx adds vkey witnesses to serialized transactions. The transaction
// body is treated as an opaque CBOR term and re-serialized byte-for-byte; only
// the witness set is rebuilt.
package tx

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// vkeyWitnessKey is the witness-set map key holding vkey witnesses.
const vkeyWitnessKey uint64 = 0

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// Signer signs raw bytes, typically a keychain private-key handle.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	PublicKey() ([]byte, error)
}

// BodyHash computes the blake2b-256 transaction id over the raw body bytes.
func BodyHash(body []byte) [32]byte {
	return blake2b.Sum256(body)
}

// Sign signs the transaction body of the given serialized transaction with the
// signer and returns the re-serialized transaction carrying the added vkey
// witness. Existing witnesses are preserved.
func Sign(rawTx []byte, signer Signer) ([]byte, error) {
	var elems []cbor.RawMessage
	if err := cbor.Unmarshal(rawTx, &elems); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction")
	}

	if len(elems) < 2 {
		return nil, errors.Errorf("malformed transaction: expected at least body and witness set, got %d elements", len(elems))
	}

	body := []byte(elems[0])
	hash := BodyHash(body)

	signature, err := signer.Sign(hash[:])
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction body hash")
	}

	publicKey, err := signer.PublicKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read verification key")
	}

	witnessSet, err := appendVkeyWitness(elems[1], publicKey, signature)
	if err != nil {
		return nil, err
	}
	elems[1] = witnessSet

	signed, err := encMode.Marshal(elems)
	if err != nil {
		return nil, errors.Wrap(err, "failed to re-encode transaction")
	}

	return signed, nil
}

func appendVkeyWitness(rawWitnessSet cbor.RawMessage, publicKey []byte, signature []byte) (cbor.RawMessage, error) {
	witnessSet := map[uint64]cbor.RawMessage{}
	if len(rawWitnessSet) > 0 {
		if err := cbor.Unmarshal(rawWitnessSet, &witnessSet); err != nil {
			return nil, errors.Wrap(err, "failed to decode witness set")
		}
	}

	var witnesses []cbor.RawMessage
	if existing, ok := witnessSet[vkeyWitnessKey]; ok {
		if err := cbor.Unmarshal(existing, &witnesses); err != nil {
			return nil, errors.Wrap(err, "failed to decode vkey witnesses")
		}
	}

	witness, err := encMode.Marshal([]interface{}{publicKey, signature})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode vkey witness")
	}
	witnesses = append(witnesses, witness)

	encodedWitnesses, err := encMode.Marshal(witnesses)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode vkey witness list")
	}
	witnessSet[vkeyWitnessKey] = encodedWitnesses

	encodedSet, err := encMode.Marshal(witnessSet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode witness set")
	}

	return encodedSet, nil
}
