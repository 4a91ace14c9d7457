package deriver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/cardano-vault/internal/cardano/keychain"
	"github/chapool/cardano-vault/internal/vault/derivation"
	"github/chapool/cardano-vault/internal/vault/deriver"
)

const (
	tenantA = "7a13ad8e-af95-419a-b56f-2e41a5cc37e3"
	tenantB = "c56a4180-65aa-42ec-a945-5fd21dec0538"
)

func testRootKey(t *testing.T) *keychain.XPrv {
	t.Helper()

	raw := make([]byte, 96)
	for i := range raw {
		raw[i] = byte(i ^ 0x5a)
	}
	raw[0] &= 0xf8
	raw[31] &= 0x1f
	raw[31] |= 0x40

	key, err := keychain.NewXPrv(raw)
	require.NoError(t, err)

	return key
}

func defaultPolicies() (derivation.Derivation, derivation.Derivation, derivation.Derivation) {
	return derivation.Constant{Value: derivation.Single(0)},
		derivation.Unique{},
		derivation.Pool{Size: 10}
}

func publicKey(t *testing.T, key keychain.PrivateKey) []byte {
	t.Helper()

	pub, err := key.PublicKey()
	require.NoError(t, err)

	return pub
}

func TestDeriveWallet(t *testing.T) {
	root := testRootKey(t)
	defer root.Free()

	account, payment, stake := defaultPolicies()

	material, err := deriver.DeriveWallet(t.Context(), tenantA, root, account, payment, stake)
	require.NoError(t, err)
	defer func() {
		for _, handle := range material.Handles() {
			handle.Free()
		}
	}()

	require.NotNil(t, material.AccountKey)
	require.NotNil(t, material.PaymentKey)
	require.NotNil(t, material.StakeKey)

	// the three keys are distinct key material
	assert.NotEqual(t, publicKey(t, material.AccountKey), publicKey(t, material.PaymentKey))
	assert.NotEqual(t, publicKey(t, material.PaymentKey), publicKey(t, material.StakeKey))
}

func TestDeriveWalletDeterministic(t *testing.T) {
	root := testRootKey(t)
	defer root.Free()

	account, payment, stake := defaultPolicies()

	first, err := deriver.DeriveWallet(t.Context(), tenantA, root, account, payment, stake)
	require.NoError(t, err)

	second, err := deriver.DeriveWallet(t.Context(), tenantA, root, account, payment, stake)
	require.NoError(t, err)

	assert.Equal(t, publicKey(t, first.AccountKey), publicKey(t, second.AccountKey))
	assert.Equal(t, publicKey(t, first.PaymentKey), publicKey(t, second.PaymentKey))
	assert.Equal(t, publicKey(t, first.StakeKey), publicKey(t, second.StakeKey))

	for _, material := range []*deriver.KeyMaterial{first, second} {
		for _, handle := range material.Handles() {
			handle.Free()
		}
	}
}

func TestDeriveWalletTenantSeparation(t *testing.T) {
	root := testRootKey(t)
	defer root.Free()

	account, payment, _ := defaultPolicies()
	// a stake policy fixed across tenants
	stake := derivation.Constant{Value: derivation.Single(4)}

	materialA, err := deriver.DeriveWallet(t.Context(), tenantA, root, account, payment, stake)
	require.NoError(t, err)

	materialB, err := deriver.DeriveWallet(t.Context(), tenantB, root, account, payment, stake)
	require.NoError(t, err)

	// unique payment policy separates tenants, the fixed stake policy does not
	assert.NotEqual(t, publicKey(t, materialA.PaymentKey), publicKey(t, materialB.PaymentKey))
	assert.Equal(t, publicKey(t, materialA.StakeKey), publicKey(t, materialB.StakeKey))

	for _, material := range []*deriver.KeyMaterial{materialA, materialB} {
		for _, handle := range material.Handles() {
			handle.Free()
		}
	}
}

func TestDeriveWalletResolutionFailure(t *testing.T) {
	root := testRootKey(t)
	defer root.Free()

	account, payment, _ := defaultPolicies()

	material, err := deriver.DeriveWallet(t.Context(), tenantA, root, account, payment, derivation.Pool{Size: 0})
	require.Error(t, err)
	assert.Nil(t, material)
	assert.ErrorIs(t, err, derivation.ErrPoolSize)

	// the root key stays usable, only partial material was freed
	_, err = root.PublicKey()
	require.NoError(t, err)
}

func TestDeriveWalletInvalidTenant(t *testing.T) {
	root := testRootKey(t)
	defer root.Free()

	account, payment, stake := defaultPolicies()

	material, err := deriver.DeriveWallet(t.Context(), "not-a-uuid", root, account, payment, stake)
	require.Error(t, err)
	assert.Nil(t, material)
	assert.ErrorIs(t, err, derivation.ErrInvalidTenantID)
}

func TestKeyMaterialHandles(t *testing.T) {
	assert.Nil(t, (*deriver.KeyMaterial)(nil).Handles())

	root := testRootKey(t)
	material := &deriver.KeyMaterial{AccountKey: root, Extra: []keychain.PrivateKey{root}}
	assert.Len(t, material.Handles(), 2)
	root.Free()
}
