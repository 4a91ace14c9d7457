package test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github/chapool/cardano-vault/internal/api"
	"github/chapool/cardano-vault/internal/api/router"
	"github/chapool/cardano-vault/internal/config"
)

// RootKeyHex returns a deterministic, properly clamped extended root key for
// tests (never use outside tests).
func RootKeyHex() string {
	raw := make([]byte, 96)
	for i := range raw {
		raw[i] = byte(i*7 + 3)
	}

	// clamp the spending scalar as a real root key would be
	raw[0] &= 0xf8
	raw[31] &= 0x1f
	raw[31] |= 0x40

	return hex.EncodeToString(raw)
}

// DefaultTestServerConfig returns the service config used by the test server:
// testnet, deterministic root key, quiet request logging.
func DefaultTestServerConfig() config.Server {
	cfg := config.DefaultServiceConfigFromEnv()
	cfg.Vault.Network = "testnet"
	cfg.Vault.RootKeyHex = RootKeyHex()
	cfg.Vault.RootKeyFile = ""
	cfg.Vault.WarnNoScrambler = false
	cfg.Echo.EnableLoggerMiddleware = false
	cfg.Management.Secret = ""

	return cfg
}

// WithTestServer creates a fully initialized test server with the default
// test config and passes it to the closure.
func WithTestServer(t *testing.T, closure func(s *api.Server)) {
	t.Helper()
	WithTestServerConfigurable(t, DefaultTestServerConfig(), closure)
}

// WithTestServerConfigurable creates a fully initialized test server with the
// given config and passes it to the closure.
func WithTestServerConfigurable(t *testing.T, cfg config.Server, closure func(s *api.Server)) {
	t.Helper()

	s, err := api.InitNewServer(cfg)
	require.NoError(t, err)

	router.Init(s)

	closure(s)
}
