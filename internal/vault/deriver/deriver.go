// Package deriver sequences root → account → payment/stake key derivation for
// a tenant according to the configured derivation policies.
package deriver

import (
	"context"

	"github.com/pkg/errors"
	"github/chapool/cardano-vault/internal/cardano/keychain"
	"github/chapool/cardano-vault/internal/vault/derivation"
)

// KeyMaterial is the set of related key handles derived for one tenant. The
// handles are exclusively owned by the operation that derived them and must be
// released exactly once on every exit path.
type KeyMaterial struct {
	AccountKey keychain.PrivateKey
	PaymentKey keychain.PrivateKey
	StakeKey   keychain.PrivateKey

	// Extra holds additional handles introduced by derivation hooks so that
	// they participate in the same release discipline.
	Extra []keychain.PrivateKey
}

// Handles returns every non-nil handle held by the material.
func (m *KeyMaterial) Handles() []keychain.PrivateKey {
	if m == nil {
		return nil
	}

	handles := make([]keychain.PrivateKey, 0, 3+len(m.Extra))
	for _, k := range []keychain.PrivateKey{m.AccountKey, m.PaymentKey, m.StakeKey} {
		if k != nil {
			handles = append(handles, k)
		}
	}

	return append(handles, m.Extra...)
}

// DeriveWallet derives the account, payment and stake keys of a tenant from
// the given root key. On any failure all partially derived handles are freed
// and no key material is returned.
func DeriveWallet(
	ctx context.Context,
	tenantID string,
	rootKey keychain.PrivateKey,
	accountPolicy derivation.Derivation,
	paymentPolicy derivation.Derivation,
	stakePolicy derivation.Derivation,
) (*KeyMaterial, error) {
	accountPath, err := derivation.Resolve(ctx, tenantID, accountPolicy)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve account derivation")
	}

	// purpose and coin type are fixed, every account segment is hardened
	fullAccountPath := make(derivation.Path, 0, 2+len(accountPath))
	fullAccountPath = append(fullAccountPath,
		keychain.Harden(keychain.PurposeIndex),
		keychain.Harden(keychain.CoinTypeIndex),
	)
	for _, segment := range accountPath {
		fullAccountPath = append(fullAccountPath, keychain.Harden(segment))
	}

	accountKey, err := descend(rootKey, fullAccountPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive account key")
	}

	paymentPath, err := derivation.Resolve(ctx, tenantID, paymentPolicy)
	if err != nil {
		accountKey.Free()
		return nil, errors.Wrap(err, "failed to resolve payment derivation")
	}

	stakePath, err := derivation.Resolve(ctx, tenantID, stakePolicy)
	if err != nil {
		accountKey.Free()
		return nil, errors.Wrap(err, "failed to resolve stake derivation")
	}

	paymentKey, err := descend(accountKey, append(derivation.Path{keychain.ExternalChainIndex}, paymentPath...))
	if err != nil {
		accountKey.Free()
		return nil, errors.Wrap(err, "failed to derive payment key")
	}

	stakeKey, err := descend(accountKey, append(derivation.Path{keychain.StakingChainIndex}, stakePath...))
	if err != nil {
		accountKey.Free()
		paymentKey.Free()
		return nil, errors.Wrap(err, "failed to derive stake key")
	}

	return &KeyMaterial{
		AccountKey: accountKey,
		PaymentKey: paymentKey,
		StakeKey:   stakeKey,
	}, nil
}

// descend derives the path step by step from the parent, freeing every
// intermediate handle. The parent itself is never freed.
func descend(parent keychain.PrivateKey, path derivation.Path) (keychain.PrivateKey, error) {
	current := parent
	for i, index := range path {
		child, err := current.Derive(index)
		if err != nil {
			if current != parent {
				current.Free()
			}
			return nil, errors.Wrapf(err, "failed to derive child key at depth %d", i)
		}

		if current != parent {
			current.Free()
		}
		current = child
	}

	if current == parent {
		return nil, errors.New("empty derivation path")
	}

	return current, nil
}
