// Package cose implements the COSE_Sign1 envelope used for message signing
// (CIP-8 / CIP-30 style), bound to an address and an Ed25519 key.
package cose

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

const (
	headerLabelAlg     = 1
	headerLabelAddress = "address"

	algEdDSA = -8

	keyLabelKty   = 1
	keyLabelAlg   = 3
	keyLabelCrv   = -1
	keyLabelX     = -2
	ktyOKP        = 1
	crvEd25519    = 6
)

// Signer signs raw bytes, typically a keychain private-key handle.
type Signer interface {
	Sign(message []byte) ([]byte, error)
}

// Envelope is the result of signing a payload: the serialized COSE_Sign1
// structure and the matching COSE_Key verification key.
type Envelope struct {
	Signature []byte
	Key       []byte
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// Sign1 produces a COSE_Sign1 envelope over payload, bound to the given
// address. externalAAD, when non-nil, is folded into the signed Sig_structure
// but not carried in the envelope itself.
func Sign1(signer Signer, publicKey []byte, address []byte, payload []byte, externalAAD []byte) (*Envelope, error) {
	protected, err := encMode.Marshal(map[interface{}]interface{}{
		headerLabelAlg:     algEdDSA,
		headerLabelAddress: address,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode protected headers")
	}

	if externalAAD == nil {
		externalAAD = []byte{}
	}

	// Sig_structure = ["Signature1", protected, external_aad, payload]
	sigStructure, err := encMode.Marshal([]interface{}{
		"Signature1",
		protected,
		externalAAD,
		payload,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode Sig_structure")
	}

	signature, err := signer.Sign(sigStructure)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign Sig_structure")
	}

	coseSign1, err := encMode.Marshal([]interface{}{
		protected,
		map[interface{}]interface{}{"hashed": false},
		payload,
		signature,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode COSE_Sign1")
	}

	coseKey, err := encMode.Marshal(map[interface{}]interface{}{
		keyLabelKty: ktyOKP,
		keyLabelAlg: algEdDSA,
		keyLabelCrv: crvEd25519,
		keyLabelX:   publicKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode COSE_Key")
	}

	return &Envelope{Signature: coseSign1, Key: coseKey}, nil
}

// VerificationInput reconstructs the Sig_structure signed by Sign1. It exists
// for tests and downstream verifiers.
func VerificationInput(address []byte, payload []byte, externalAAD []byte) ([]byte, error) {
	protected, err := encMode.Marshal(map[interface{}]interface{}{
		headerLabelAlg:     algEdDSA,
		headerLabelAddress: address,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode protected headers")
	}

	if externalAAD == nil {
		externalAAD = []byte{}
	}

	return encMode.Marshal([]interface{}{
		"Signature1",
		protected,
		externalAAD,
		payload,
	})
}
