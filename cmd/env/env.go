package env

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/cardano-vault/internal/config"
)

// New returns the "env" subcommand printing the effective configuration.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Prints the env",
		Long: `Prints the currently applied server environment.
Server config is primarily controlled through ENV.`,
		Run: func(_ *cobra.Command, _ []string) {
			printEnv()
		},
	}
}

func printEnv() {
	cfg := config.DefaultServiceConfigFromEnv()

	c, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal config")
	}

	fmt.Println(string(c))
}
