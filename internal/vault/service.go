// Package vault orchestrates per-tenant key derivation and signing. Every
// operation derives its own key material, uses it and deterministically
// releases it, regardless of how the operation exits.
package vault

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/pkg/errors"
	"github/chapool/cardano-vault/internal/cardano/address"
	"github/chapool/cardano-vault/internal/cardano/cose"
	"github/chapool/cardano-vault/internal/cardano/keychain"
	"github/chapool/cardano-vault/internal/cardano/tx"
	"github/chapool/cardano-vault/internal/vault/deriver"
)

// Fixed messages of the three operations; internal failure details travel in
// the cause chain, never in the message itself.
const (
	msgGetWallet       = "Failed to retrieve wallet addresses"
	msgSignData        = "Failed to sign data payload"
	msgSignTransaction = "Failed to sign transaction"
)

// Service is the stateful vault façade exposing the three tenant operations.
type Service struct {
	config   Config
	warnOnce sync.Once
}

// NewService creates a vault from the given configuration.
func NewService(config Config) (*Service, error) {
	if config.RootKeyProvider == nil && config.CustomWalletDerivation == nil {
		return nil, errors.New("vault config requires a root key provider or a custom wallet derivation")
	}

	return &Service{config: config}, nil
}

// Config returns a copy of the current configuration.
func (s *Service) Config() Config {
	return s.config
}

// SetConfig mutates the configuration of this vault instance in place and
// returns the same instance. Not safe while requests are in flight.
func (s *Service) SetConfig(mutate func(*Config)) *Service {
	mutate(&s.config)
	return s
}

// WithConfig returns a new vault instance with a copied, mutated
// configuration, leaving this instance untouched.
func (s *Service) WithConfig(mutate func(*Config)) *Service {
	config := s.config
	mutate(&config)
	return &Service{config: config}
}

// AddressForms carries one address in both canonical textual and raw-byte
// (hex) representation.
type AddressForms struct {
	Bech32 string `json:"bech32"`
	Hex    string `json:"hex"`
}

type GetWalletInput struct {
	TenantID string
}

type GetWalletOutput struct {
	Base       AddressForms `json:"base"`
	Enterprise AddressForms `json:"enterprise"`
	Reward     AddressForms `json:"reward"`
}

type SignDataInput struct {
	TenantID    string
	Payload     string // hex
	ExternalAAD string // hex, optional
}

type SignDataOutput struct {
	Signature string `json:"signature"`
	Key       string `json:"key"`
}

type SignTransactionInput struct {
	TenantID    string
	Transaction string // hex-encoded CBOR
}

type SignTransactionOutput struct {
	SignedTransaction string `json:"signedTransaction"`
}

// GetWallet derives the tenant's keys and returns the base, enterprise and
// reward addresses in both representations.
func (s *Service) GetWallet(ctx context.Context, input GetWalletInput) (out *GetWalletOutput, err error) {
	release := newReleaseSet()
	defer release.freeAll(ctx)
	defer recoverOperation(&out, &err, msgGetWallet)

	material, derr := s.deriveWallet(ctx, input.TenantID, release)
	if derr != nil {
		return nil, NewInternalError(msgGetWallet, derr)
	}

	paymentPub, stakePub, perr := publicKeys(material)
	if perr != nil {
		return nil, NewInternalError(msgGetWallet, perr)
	}

	base, berr := address.Base(s.config.Network, paymentPub, stakePub)
	if berr != nil {
		return nil, NewInternalError(msgGetWallet, berr)
	}

	enterprise, eerr := address.Enterprise(s.config.Network, paymentPub)
	if eerr != nil {
		return nil, NewInternalError(msgGetWallet, eerr)
	}

	reward, rerr := address.Reward(s.config.Network, stakePub)
	if rerr != nil {
		return nil, NewInternalError(msgGetWallet, rerr)
	}

	return &GetWalletOutput{
		Base:       AddressForms{Bech32: base.Bech32, Hex: base.Hex()},
		Enterprise: AddressForms{Bech32: enterprise.Bech32, Hex: enterprise.Hex()},
		Reward:     AddressForms{Bech32: reward.Bech32, Hex: reward.Hex()},
	}, nil
}

// SignData produces a detached COSE_Sign1 signature over the payload, bound
// to the tenant's base address and payment key.
func (s *Service) SignData(ctx context.Context, input SignDataInput) (out *SignDataOutput, err error) {
	release := newReleaseSet()
	defer release.freeAll(ctx)
	defer recoverOperation(&out, &err, msgSignData)

	payload, herr := hex.DecodeString(input.Payload)
	if herr != nil {
		return nil, NewInternalError(msgSignData, errors.Wrap(herr, "payload is not a hex string"))
	}

	var externalAAD []byte
	if input.ExternalAAD != "" {
		externalAAD, herr = hex.DecodeString(input.ExternalAAD)
		if herr != nil {
			return nil, NewInternalError(msgSignData, errors.Wrap(herr, "externalAad is not a hex string"))
		}
	}

	material, derr := s.deriveWallet(ctx, input.TenantID, release)
	if derr != nil {
		return nil, NewInternalError(msgSignData, derr)
	}

	paymentPub, stakePub, perr := publicKeys(material)
	if perr != nil {
		return nil, NewInternalError(msgSignData, perr)
	}

	base, berr := address.Base(s.config.Network, paymentPub, stakePub)
	if berr != nil {
		return nil, NewInternalError(msgSignData, berr)
	}

	envelope, serr := cose.Sign1(material.PaymentKey, paymentPub, base.Bytes, payload, externalAAD)
	if serr != nil {
		return nil, NewInternalError(msgSignData, serr)
	}

	return &SignDataOutput{
		Signature: hex.EncodeToString(envelope.Signature),
		Key:       hex.EncodeToString(envelope.Key),
	}, nil
}

// SignTransaction signs a serialized transaction body with the tenant's
// payment key and returns the canonical signed form.
func (s *Service) SignTransaction(ctx context.Context, input SignTransactionInput) (out *SignTransactionOutput, err error) {
	release := newReleaseSet()
	defer release.freeAll(ctx)
	defer recoverOperation(&out, &err, msgSignTransaction)

	rawTx, herr := hex.DecodeString(input.Transaction)
	if herr != nil {
		return nil, NewInternalError(msgSignTransaction, errors.Wrap(herr, "transaction is not a hex string"))
	}

	material, derr := s.deriveWallet(ctx, input.TenantID, release)
	if derr != nil {
		return nil, NewInternalError(msgSignTransaction, derr)
	}

	signed, serr := tx.Sign(rawTx, material.PaymentKey)
	if serr != nil {
		return nil, NewInternalError(msgSignTransaction, serr)
	}

	return &SignTransactionOutput{SignedTransaction: hex.EncodeToString(signed)}, nil
}

// deriveWallet resolves the tenant's key material, tracking every obtained
// handle in the release set before anything can fail afterwards.
func (s *Service) deriveWallet(ctx context.Context, tenantID string, release *releaseSet) (*deriver.KeyMaterial, error) {
	if s.config.CustomWalletDerivation != nil {
		material, err := s.config.CustomWalletDerivation(ctx, CustomDerivationInput{TenantID: tenantID}, s.config.required())
		if err != nil {
			return nil, err
		}
		if material == nil {
			return nil, errors.New("custom wallet derivation returned no key material")
		}

		release.track(material.Handles()...)
		return material, nil
	}

	if s.config.PaymentDerivation == nil && s.config.PaymentScrambler == nil && !s.config.SuppressScramblerWarning {
		s.warnOnce.Do(func() {
			s.config.Logger.Warn().Msg("Default payment derivation is running without a scrambler; tenant payment keys are derived from raw identifier bytes, which is unsafe for production")
		})
	}

	rootKeyHex, err := s.config.RootKeyProvider(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "root key provider failed")
	}

	rootKey, err := keychain.ParseRootKey(rootKeyHex)
	if err != nil {
		return nil, err
	}
	release.track(rootKey)

	material, err := deriver.DeriveWallet(ctx, tenantID, rootKey,
		s.config.accountPolicy(), s.config.paymentPolicy(), s.config.stakePolicy())
	if err != nil {
		return nil, err
	}
	release.track(material.Handles()...)

	if s.config.AdditionalWalletDerivation != nil {
		material, err = s.config.AdditionalWalletDerivation(ctx, tenantID, material)
		if err != nil {
			return nil, err
		}
		if material == nil {
			return nil, errors.New("additional wallet derivation returned no key material")
		}

		release.track(material.Handles()...)
	}

	return material, nil
}

func publicKeys(material *deriver.KeyMaterial) (paymentPub []byte, stakePub []byte, err error) {
	if material.PaymentKey == nil || material.StakeKey == nil {
		return nil, nil, errors.New("derived key material is incomplete")
	}

	paymentPub, err = material.PaymentKey.PublicKey()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read payment public key")
	}

	stakePub, err = material.StakeKey.PublicKey()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read stake public key")
	}

	return paymentPub, stakePub, nil
}

// recoverOperation converts a panic inside an operation body into the
// operation's VaultError. The release set's own deferred freeAll still runs.
func recoverOperation[T any](out **T, err *error, message string) {
	if r := recover(); r != nil {
		*out = nil
		*err = NewInternalError(message, errors.Errorf("panic: %v", r))
	}
}
