package api

import (
	"context"
	"os"
	"strings"

	"github.com/dropbox/godropbox/time2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/cardano-vault/internal/cardano/address"
	"github/chapool/cardano-vault/internal/config"
	"github/chapool/cardano-vault/internal/vault"
	"github/chapool/cardano-vault/internal/vault/derivation"
	"github/chapool/cardano-vault/internal/vault/dispatch"
)

// NewClock returns the real clock used by the server components.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewClock() time2.Clock {
	return time2.DefaultClock
}

// NewVaultService builds the vault from the service configuration: root key
// sourced from ENV (hex or file path), network and the default derivation
// policies parametrized from config.
func NewVaultService(cfg config.Server) (*vault.Service, error) {
	network, err := address.NetworkFromString(cfg.Vault.Network)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve vault network")
	}

	// fail at startup instead of turning every operation into a 500
	if cfg.Vault.StakePoolSize <= 0 {
		return nil, errors.Errorf("invalid stake pool size %d, must be positive", cfg.Vault.StakePoolSize)
	}

	vaultCfg := vault.Config{
		RootKeyProvider:          rootKeyProvider(cfg.Vault),
		Network:                  network,
		AccountDerivation:        derivation.Constant{Value: derivation.Single(cfg.Vault.AccountIndex)},
		StakeDerivation:          derivation.Pool{Size: cfg.Vault.StakePoolSize},
		SuppressScramblerWarning: !cfg.Vault.WarnNoScrambler,
		Logger:                   log.Logger,
	}

	return vault.NewService(vaultCfg)
}

func NewDispatcher(vaultService *vault.Service) *dispatch.Dispatcher {
	return dispatch.New(vaultService)
}

// rootKeyProvider resolves the root key lazily per operation so that rotated
// key files are picked up without a restart.
func rootKeyProvider(cfg config.VaultServer) vault.RootKeyProvider {
	return func(_ context.Context) (string, error) {
		if cfg.RootKeyHex != "" {
			return cfg.RootKeyHex, nil
		}

		if cfg.RootKeyFile != "" {
			raw, err := os.ReadFile(cfg.RootKeyFile)
			if err != nil {
				return "", errors.Wrapf(err, "failed to read root key file %s", cfg.RootKeyFile)
			}

			key := strings.TrimSpace(string(raw))
			if key == "" {
				return "", errors.Errorf("root key file %s is empty", cfg.RootKeyFile)
			}

			return key, nil
		}

		return "", errors.New("no root key configured (SERVER_VAULT_ROOT_KEY_HEX or SERVER_VAULT_ROOT_KEY_FILE)")
	}
}
