package probe

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/cardano-vault/internal/config"
)

const probeTimeout = 5 * time.Second

// New returns the "probe" subcommand used as container liveness/readiness
// probe against the management endpoints of a running server.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probes the server",
		Long:  `Probes the readiness of a locally running server via its management endpoints.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "readiness",
		Short: "Checks /-/ready",
		Run: func(_ *cobra.Command, _ []string) {
			probeEndpoint("/-/ready")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "liveness",
		Short: "Checks /-/healthy",
		Run: func(_ *cobra.Command, _ []string) {
			probeEndpoint("/-/healthy")
		},
	})

	return cmd
}

func probeEndpoint(path string) {
	cfg := config.DefaultServiceConfigFromEnv()

	addr := cfg.Echo.ListenAddress
	if len(addr) > 0 && addr[0] == ':' {
		addr = "127.0.0.1" + addr
	}

	url := fmt.Sprintf("http://%s%s", addr, path)
	if cfg.Management.Secret != "" {
		url = fmt.Sprintf("%s?mgmt-secret=%s", url, cfg.Management.Secret)
	}

	client := &http.Client{Timeout: probeTimeout}
	res, err := client.Get(url)
	if err != nil {
		log.Fatal().Err(err).Str("url", url).Msg("Probe request failed")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read probe response")
	}

	fmt.Println(string(body))

	if res.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
