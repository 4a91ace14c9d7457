package vault

import (
	"context"

	"github.com/rs/zerolog"
	"github/chapool/cardano-vault/internal/cardano/address"
	"github/chapool/cardano-vault/internal/vault/derivation"
	"github/chapool/cardano-vault/internal/vault/deriver"
)

// RootKeyProvider returns the hex form of the extended root key. It may
// perform I/O (remote secret managers) and is invoked once per operation.
type RootKeyProvider func(ctx context.Context) (string, error)

// CustomDerivationInput is handed to a CustomWalletDerivation hook.
type CustomDerivationInput struct {
	TenantID string
}

// RequiredConfig is the reduced configuration a CustomWalletDerivation hook
// receives: enough to reach the root secret and the target network, nothing else.
type RequiredConfig struct {
	RootKeyProvider RootKeyProvider
	Network         address.Network
}

// CustomWalletDerivation fully replaces the standard derivation sequence.
// Every handle the hook returns joins the caller's release set.
type CustomWalletDerivation func(ctx context.Context, input CustomDerivationInput, cfg RequiredConfig) (*deriver.KeyMaterial, error)

// AdditionalWalletDerivation post-processes the standard derivation's output,
// augmenting or replacing keys. Handles it introduces join the release set;
// handles it drops remain tracked and are still released.
type AdditionalWalletDerivation func(ctx context.Context, tenantID string, material *deriver.KeyMaterial) (*deriver.KeyMaterial, error)

// defaultStakePoolSize is the bucket count of the default stake policy.
const defaultStakePoolSize = 10

// Config aggregates everything a vault instance needs. It is treated as
// effectively immutable during a request; use the Service Set/With helpers to
// replace fields between requests.
type Config struct {
	RootKeyProvider RootKeyProvider
	Network         address.Network

	// Derivation policies; nil selects the documented default
	// (account: constant 0, payment: unique, stake: pool of 10).
	AccountDerivation derivation.Derivation
	PaymentDerivation derivation.Derivation
	StakeDerivation   derivation.Derivation

	// PaymentScrambler hardens the default payment policy. Leaving it unset
	// with the default payment policy is unsafe for production and logged once,
	// unless SuppressScramblerWarning is set.
	PaymentScrambler         derivation.Scrambler
	SuppressScramblerWarning bool

	CustomWalletDerivation     CustomWalletDerivation
	AdditionalWalletDerivation AdditionalWalletDerivation

	Logger zerolog.Logger
}

func (c Config) accountPolicy() derivation.Derivation {
	if c.AccountDerivation != nil {
		return c.AccountDerivation
	}

	return derivation.Constant{Value: derivation.Single(0)}
}

func (c Config) paymentPolicy() derivation.Derivation {
	if c.PaymentDerivation != nil {
		return c.PaymentDerivation
	}

	return derivation.Unique{Scrambler: c.PaymentScrambler}
}

func (c Config) stakePolicy() derivation.Derivation {
	if c.StakeDerivation != nil {
		return c.StakeDerivation
	}

	return derivation.Pool{Size: defaultStakePoolSize}
}

func (c Config) required() RequiredConfig {
	return RequiredConfig{
		RootKeyProvider: c.RootKeyProvider,
		Network:         c.Network,
	}
}
