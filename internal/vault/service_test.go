package vault_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
	"github/chapool/cardano-vault/internal/cardano/address"
	"github/chapool/cardano-vault/internal/cardano/cose"
	"github/chapool/cardano-vault/internal/cardano/keychain"
	"github/chapool/cardano-vault/internal/test"
	"github/chapool/cardano-vault/internal/vault"
	"github/chapool/cardano-vault/internal/vault/derivation"
	"github/chapool/cardano-vault/internal/vault/deriver"
)

const testTenantID = "7a13ad8e-af95-419a-b56f-2e41a5cc37e3"

func testConfig() vault.Config {
	return vault.Config{
		RootKeyProvider: func(ctx context.Context) (string, error) {
			return test.RootKeyHex(), nil
		},
		Network: address.Testnet,
		Logger:  zerolog.Nop(),
	}
}

// fakeKey is an inert key handle that records how often it was released.
type fakeKey struct {
	frees     int
	failPub   bool
	publicKey []byte
}

func newFakeKey(fill byte) *fakeKey {
	pub := bytes.Repeat([]byte{fill}, 32)
	return &fakeKey{publicKey: pub}
}

func (f *fakeKey) Derive(index uint32) (keychain.PrivateKey, error) {
	return newFakeKey(byte(index)), nil
}

func (f *fakeKey) PublicKey() ([]byte, error) {
	if f.failPub {
		return nil, errors.New("public key unavailable")
	}

	return f.publicKey, nil
}

func (f *fakeKey) Sign(message []byte) ([]byte, error) {
	return make([]byte, 64), nil
}

func (f *fakeKey) Free() {
	f.frees++
}

func TestNewServiceRequiresProviderOrCustomDerivation(t *testing.T) {
	_, err := vault.NewService(vault.Config{Network: address.Testnet})
	require.Error(t, err)

	_, err = vault.NewService(testConfig())
	require.NoError(t, err)

	_, err = vault.NewService(vault.Config{
		Network: address.Testnet,
		CustomWalletDerivation: func(ctx context.Context, input vault.CustomDerivationInput, cfg vault.RequiredConfig) (*deriver.KeyMaterial, error) {
			return nil, errors.New("unused")
		},
	})
	require.NoError(t, err)
}

func TestGetWallet(t *testing.T) {
	ctx := context.Background()
	s, err := vault.NewService(testConfig())
	require.NoError(t, err)

	out, err := s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.Base.Bech32, "addr_test1"), out.Base.Bech32)
	assert.True(t, strings.HasPrefix(out.Enterprise.Bech32, "addr_test1"), out.Enterprise.Bech32)
	assert.True(t, strings.HasPrefix(out.Reward.Bech32, "stake_test1"), out.Reward.Bech32)

	// header bytes of the hex forms carry the address type and network id
	assert.True(t, strings.HasPrefix(out.Base.Hex, "00"))
	assert.True(t, strings.HasPrefix(out.Enterprise.Hex, "60"))
	assert.True(t, strings.HasPrefix(out.Reward.Hex, "e0"))

	again, err := s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestGetWalletMainnetHeaders(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Network = address.Mainnet

	s, err := vault.NewService(cfg)
	require.NoError(t, err)

	out, err := s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.Base.Bech32, "addr1"), out.Base.Bech32)
	assert.True(t, strings.HasPrefix(out.Reward.Bech32, "stake1"), out.Reward.Bech32)
	assert.True(t, strings.HasPrefix(out.Base.Hex, "01"))
	assert.True(t, strings.HasPrefix(out.Reward.Hex, "e1"))
}

func TestGetWalletReleasesHandles(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	var captured *deriver.KeyMaterial
	cfg.AdditionalWalletDerivation = func(ctx context.Context, tenantID string, material *deriver.KeyMaterial) (*deriver.KeyMaterial, error) {
		captured = material
		return material, nil
	}

	s, err := vault.NewService(cfg)
	require.NoError(t, err)

	_, err = s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)
	require.NotNil(t, captured)

	for _, handle := range captured.Handles() {
		_, err := handle.PublicKey()
		assert.ErrorIs(t, err, keychain.ErrFreed)
	}
}

func TestGetWalletDerivationFailure(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.StakeDerivation = derivation.Pool{Size: 0}

	s, err := vault.NewService(cfg)
	require.NoError(t, err)

	out, err := s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.Error(t, err)
	assert.Nil(t, out)

	verr, ok := vault.AsVaultError(err)
	require.True(t, ok)
	assert.Equal(t, "Failed to retrieve wallet addresses", verr.Message)
	assert.Equal(t, http.StatusInternalServerError, verr.StatusCode)
	assert.ErrorIs(t, err, derivation.ErrPoolSize)
}

func TestGetWalletInvalidTenant(t *testing.T) {
	ctx := context.Background()
	s, err := vault.NewService(testConfig())
	require.NoError(t, err)

	_, err = s.GetWallet(ctx, vault.GetWalletInput{TenantID: "not-a-uuid"})
	require.Error(t, err)

	verr, ok := vault.AsVaultError(err)
	require.True(t, ok)
	assert.Equal(t, "Failed to retrieve wallet addresses", verr.Message)
	assert.ErrorIs(t, err, derivation.ErrInvalidTenantID)
}

func TestGetWalletRootKeyProviderFailure(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.RootKeyProvider = func(ctx context.Context) (string, error) {
		return "", errors.New("secret backend unreachable")
	}

	s, err := vault.NewService(cfg)
	require.NoError(t, err)

	_, err = s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.Error(t, err)

	verr, ok := vault.AsVaultError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, verr.StatusCode)
}

func TestSignData(t *testing.T) {
	ctx := context.Background()
	s, err := vault.NewService(testConfig())
	require.NoError(t, err)

	payload := []byte("hello cardano")
	out, err := s.SignData(ctx, vault.SignDataInput{
		TenantID: testTenantID,
		Payload:  hex.EncodeToString(payload),
	})
	require.NoError(t, err)

	envelope, err := hex.DecodeString(out.Signature)
	require.NoError(t, err)
	coseKey, err := hex.DecodeString(out.Key)
	require.NoError(t, err)

	var parts []cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(envelope, &parts))
	require.Len(t, parts, 4)

	var signedPayload []byte
	require.NoError(t, cbor.Unmarshal(parts[2], &signedPayload))
	assert.Equal(t, payload, signedPayload)

	var signature []byte
	require.NoError(t, cbor.Unmarshal(parts[3], &signature))
	require.Len(t, signature, ed25519.SignatureSize)

	var keyLabels map[int64]interface{}
	require.NoError(t, cbor.Unmarshal(coseKey, &keyLabels))
	publicKey, ok := keyLabels[-2].([]byte)
	require.True(t, ok)
	require.Len(t, publicKey, ed25519.PublicKeySize)

	// the signature covers the Sig_structure bound to the base address
	wallet, err := s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)
	baseAddress, err := hex.DecodeString(wallet.Base.Hex)
	require.NoError(t, err)

	input, err := cose.VerificationInput(baseAddress, payload, nil)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(publicKey, input, signature))
}

func TestSignDataExternalAAD(t *testing.T) {
	ctx := context.Background()
	s, err := vault.NewService(testConfig())
	require.NoError(t, err)

	payload := hex.EncodeToString([]byte("payload"))
	plain, err := s.SignData(ctx, vault.SignDataInput{TenantID: testTenantID, Payload: payload})
	require.NoError(t, err)

	withAAD, err := s.SignData(ctx, vault.SignDataInput{
		TenantID:    testTenantID,
		Payload:     payload,
		ExternalAAD: hex.EncodeToString([]byte("aad")),
	})
	require.NoError(t, err)

	assert.NotEqual(t, plain.Signature, withAAD.Signature)
	assert.Equal(t, plain.Key, withAAD.Key)
}

func TestSignDataInvalidPayload(t *testing.T) {
	ctx := context.Background()
	s, err := vault.NewService(testConfig())
	require.NoError(t, err)

	_, err = s.SignData(ctx, vault.SignDataInput{TenantID: testTenantID, Payload: "zz"})
	require.Error(t, err)

	verr, ok := vault.AsVaultError(err)
	require.True(t, ok)
	assert.Equal(t, "Failed to sign data payload", verr.Message)
	assert.Equal(t, http.StatusInternalServerError, verr.StatusCode)
	assert.Contains(t, verr.Body().Cause.Error, "payload is not a hex string")
}

func TestSignTransaction(t *testing.T) {
	ctx := context.Background()
	s, err := vault.NewService(testConfig())
	require.NoError(t, err)

	body, err := cbor.Marshal(map[uint64]interface{}{
		0: []interface{}{},
		2: uint64(170000),
	})
	require.NoError(t, err)
	rawTx, err := cbor.Marshal([]cbor.RawMessage{
		body,
		mustMarshal(t, map[uint64]interface{}{}),
		mustMarshal(t, true),
	})
	require.NoError(t, err)

	out, err := s.SignTransaction(ctx, vault.SignTransactionInput{
		TenantID:    testTenantID,
		Transaction: hex.EncodeToString(rawTx),
	})
	require.NoError(t, err)

	signed, err := hex.DecodeString(out.SignedTransaction)
	require.NoError(t, err)

	var elements []cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(signed, &elements))
	require.Len(t, elements, 3)
	assert.Equal(t, []byte(body), []byte(elements[0]))

	var witnessSet map[uint64]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(elements[1], &witnessSet))

	var witnesses [][2][]byte
	require.NoError(t, cbor.Unmarshal(witnessSet[0], &witnesses))
	require.Len(t, witnesses, 1)

	bodyHash := blake2b.Sum256(body)
	assert.True(t, ed25519.Verify(witnesses[0][0], bodyHash[:], witnesses[0][1]))
}

func TestSignTransactionMalformed(t *testing.T) {
	ctx := context.Background()
	s, err := vault.NewService(testConfig())
	require.NoError(t, err)

	// valid hex, but a CBOR unsigned integer instead of a transaction array
	_, err = s.SignTransaction(ctx, vault.SignTransactionInput{TenantID: testTenantID, Transaction: "00"})
	require.Error(t, err)

	verr, ok := vault.AsVaultError(err)
	require.True(t, ok)
	assert.Equal(t, "Failed to sign transaction", verr.Message)
	assert.Equal(t, http.StatusInternalServerError, verr.StatusCode)
}

func TestCustomWalletDerivation(t *testing.T) {
	ctx := context.Background()

	account := newFakeKey(0x01)
	payment := newFakeKey(0x02)
	stake := newFakeKey(0x03)

	s, err := vault.NewService(vault.Config{
		Network: address.Testnet,
		Logger:  zerolog.Nop(),
		CustomWalletDerivation: func(ctx context.Context, input vault.CustomDerivationInput, cfg vault.RequiredConfig) (*deriver.KeyMaterial, error) {
			assert.Equal(t, testTenantID, input.TenantID)
			assert.Equal(t, address.Testnet, cfg.Network)

			return &deriver.KeyMaterial{
				AccountKey: account,
				PaymentKey: payment,
				StakeKey:   stake,
			}, nil
		},
	})
	require.NoError(t, err)

	out, err := s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Base.Bech32, "addr_test1"))

	assert.Equal(t, 1, account.frees)
	assert.Equal(t, 1, payment.frees)
	assert.Equal(t, 1, stake.frees)
}

func TestCustomWalletDerivationReleasesOnFailure(t *testing.T) {
	ctx := context.Background()

	account := newFakeKey(0x01)
	payment := newFakeKey(0x02)
	payment.failPub = true
	stake := newFakeKey(0x03)
	extra := newFakeKey(0x04)

	s, err := vault.NewService(vault.Config{
		Network: address.Testnet,
		Logger:  zerolog.Nop(),
		CustomWalletDerivation: func(ctx context.Context, input vault.CustomDerivationInput, cfg vault.RequiredConfig) (*deriver.KeyMaterial, error) {
			return &deriver.KeyMaterial{
				AccountKey: account,
				PaymentKey: payment,
				StakeKey:   stake,
				Extra:      []keychain.PrivateKey{extra},
			}, nil
		},
	})
	require.NoError(t, err)

	_, err = s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.Error(t, err)

	assert.Equal(t, 1, account.frees)
	assert.Equal(t, 1, payment.frees)
	assert.Equal(t, 1, stake.frees)
	assert.Equal(t, 1, extra.frees)
}

func TestCustomWalletDerivationPanic(t *testing.T) {
	ctx := context.Background()

	s, err := vault.NewService(vault.Config{
		Network: address.Testnet,
		Logger:  zerolog.Nop(),
		CustomWalletDerivation: func(ctx context.Context, input vault.CustomDerivationInput, cfg vault.RequiredConfig) (*deriver.KeyMaterial, error) {
			panic("custom derivation exploded")
		},
	})
	require.NoError(t, err)

	out, err := s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.Error(t, err)
	assert.Nil(t, out)

	verr, ok := vault.AsVaultError(err)
	require.True(t, ok)
	assert.Equal(t, "Failed to retrieve wallet addresses", verr.Message)
	assert.Equal(t, http.StatusInternalServerError, verr.StatusCode)
}

func TestAdditionalWalletDerivation(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	extra := newFakeKey(0x05)
	cfg.AdditionalWalletDerivation = func(ctx context.Context, tenantID string, material *deriver.KeyMaterial) (*deriver.KeyMaterial, error) {
		material.Extra = append(material.Extra, extra)
		return material, nil
	}

	s, err := vault.NewService(cfg)
	require.NoError(t, err)

	_, err = s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)
	assert.Equal(t, 1, extra.frees)
}

func TestScramblerWarningLoggedOnce(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	cfg := testConfig()
	cfg.Logger = zerolog.New(&buf)

	s, err := vault.NewService(cfg)
	require.NoError(t, err)

	_, err = s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)
	_, err = s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(buf.String(), "without a scrambler"))
}

func TestScramblerSuppressesWarning(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	cfg := testConfig()
	cfg.Logger = zerolog.New(&buf)
	cfg.PaymentScrambler = func(ctx context.Context, path derivation.Path, input derivation.ScramblerInput) (derivation.Path, error) {
		scrambled := make(derivation.Path, len(path))
		for i, index := range path {
			scrambled[i] = index ^ 0xa5
		}
		return scrambled, nil
	}

	s, err := vault.NewService(cfg)
	require.NoError(t, err)

	_, err = s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "without a scrambler")
}

func TestSuppressScramblerWarning(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	cfg := testConfig()
	cfg.Logger = zerolog.New(&buf)
	cfg.SuppressScramblerWarning = true

	s, err := vault.NewService(cfg)
	require.NoError(t, err)

	_, err = s.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "without a scrambler")
}

func TestSetConfig(t *testing.T) {
	s, err := vault.NewService(testConfig())
	require.NoError(t, err)

	same := s.SetConfig(func(c *vault.Config) {
		c.Network = address.Mainnet
	})

	assert.Same(t, s, same)
	assert.Equal(t, address.Mainnet, s.Config().Network)
}

func TestWithConfig(t *testing.T) {
	ctx := context.Background()
	s, err := vault.NewService(testConfig())
	require.NoError(t, err)

	mainnet := s.WithConfig(func(c *vault.Config) {
		c.Network = address.Mainnet
	})

	assert.NotSame(t, s, mainnet)
	assert.Equal(t, address.Testnet, s.Config().Network)
	assert.Equal(t, address.Mainnet, mainnet.Config().Network)

	out, err := mainnet.GetWallet(ctx, vault.GetWalletInput{TenantID: testTenantID})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Base.Bech32, "addr1"))
}

func mustMarshal(t *testing.T, v interface{}) cbor.RawMessage {
	t.Helper()
	raw, err := cbor.Marshal(v)
	require.NoError(t, err)
	return raw
}
