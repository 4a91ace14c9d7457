package config

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"github/chapool/cardano-vault/internal/util"
)

// EchoServer holds the configuration of the echo transport layer.
type EchoServer struct {
	Debug                          bool
	ListenAddress                  string
	HideInternalServerErrorDetails bool
	GracePeriod                    time.Duration
	EnableCORSMiddleware           bool
	EnableLoggerMiddleware         bool
	EnableRecoverMiddleware        bool
	EnableRequestIDMiddleware      bool
	EnableTrailingSlashMiddleware  bool
}

type LoggerServer struct {
	Level              zerolog.Level
	RequestLevel       zerolog.Level
	LogRequestBody     bool
	LogRequestHeader   bool
	LogRequestQuery    bool
	LogResponseBody    bool
	LogResponseHeader  bool
	PrettyPrintConsole bool
}

// VaultServer holds the configuration of the key vault itself. The root key is
// sourced from an env-provided hex string or a file path, never flags.
type VaultServer struct {
	Network         string
	RootKeyHex      string `json:"-"` // sensitive
	RootKeyFile     string
	AccountIndex    uint32
	StakePoolSize   int
	WarnNoScrambler bool
}

type ManagementServer struct {
	Secret string `json:"-"` // sensitive
}

// Server is the aggregated configuration of the whole service.
type Server struct {
	Echo       EchoServer
	Logger     LoggerServer
	Vault      VaultServer
	Management ManagementServer
}

// DefaultServiceConfigFromEnv returns the server config as parsed from the
// current process environment. A local ".env" file is merged in first when
// present (development convenience, never required).
func DefaultServiceConfigFromEnv() Server {
	// non-fatal when absent
	_ = gotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_ECHO_DEBUG", false)
	v.SetDefault("SERVER_ECHO_LISTEN_ADDRESS", ":8080")
	v.SetDefault("SERVER_ECHO_HIDE_INTERNAL_SERVER_ERROR_DETAILS", true)
	v.SetDefault("SERVER_ECHO_GRACE_PERIOD_SECONDS", 30)
	v.SetDefault("SERVER_ECHO_ENABLE_CORS_MIDDLEWARE", true)
	v.SetDefault("SERVER_ECHO_ENABLE_LOGGER_MIDDLEWARE", true)
	v.SetDefault("SERVER_ECHO_ENABLE_RECOVER_MIDDLEWARE", true)
	v.SetDefault("SERVER_ECHO_ENABLE_REQUEST_ID_MIDDLEWARE", true)
	v.SetDefault("SERVER_ECHO_ENABLE_TRAILING_SLASH_MIDDLEWARE", true)

	v.SetDefault("SERVER_LOGGER_LEVEL", "info")
	v.SetDefault("SERVER_LOGGER_REQUEST_LEVEL", "debug")
	v.SetDefault("SERVER_LOGGER_LOG_REQUEST_BODY", false)
	v.SetDefault("SERVER_LOGGER_LOG_REQUEST_HEADER", false)
	v.SetDefault("SERVER_LOGGER_LOG_REQUEST_QUERY", false)
	v.SetDefault("SERVER_LOGGER_LOG_RESPONSE_BODY", false)
	v.SetDefault("SERVER_LOGGER_LOG_RESPONSE_HEADER", false)
	v.SetDefault("SERVER_LOGGER_PRETTY_PRINT_CONSOLE", false)

	v.SetDefault("SERVER_VAULT_NETWORK", "testnet")
	v.SetDefault("SERVER_VAULT_ROOT_KEY_HEX", "")
	v.SetDefault("SERVER_VAULT_ROOT_KEY_FILE", "")
	v.SetDefault("SERVER_VAULT_ACCOUNT_INDEX", 0)
	v.SetDefault("SERVER_VAULT_STAKE_POOL_SIZE", 10)
	v.SetDefault("SERVER_VAULT_WARN_NO_SCRAMBLER", true)

	v.SetDefault("SERVER_MANAGEMENT_SECRET", "")

	return Server{
		Echo: EchoServer{
			Debug:                          v.GetBool("SERVER_ECHO_DEBUG"),
			ListenAddress:                  v.GetString("SERVER_ECHO_LISTEN_ADDRESS"),
			HideInternalServerErrorDetails: v.GetBool("SERVER_ECHO_HIDE_INTERNAL_SERVER_ERROR_DETAILS"),
			GracePeriod:                    time.Duration(v.GetInt("SERVER_ECHO_GRACE_PERIOD_SECONDS")) * time.Second,
			EnableCORSMiddleware:           v.GetBool("SERVER_ECHO_ENABLE_CORS_MIDDLEWARE"),
			EnableLoggerMiddleware:         v.GetBool("SERVER_ECHO_ENABLE_LOGGER_MIDDLEWARE"),
			EnableRecoverMiddleware:        v.GetBool("SERVER_ECHO_ENABLE_RECOVER_MIDDLEWARE"),
			EnableRequestIDMiddleware:      v.GetBool("SERVER_ECHO_ENABLE_REQUEST_ID_MIDDLEWARE"),
			EnableTrailingSlashMiddleware:  v.GetBool("SERVER_ECHO_ENABLE_TRAILING_SLASH_MIDDLEWARE"),
		},
		Logger: LoggerServer{
			Level:              util.LogLevelFromString(v.GetString("SERVER_LOGGER_LEVEL")),
			RequestLevel:       util.LogLevelFromString(v.GetString("SERVER_LOGGER_REQUEST_LEVEL")),
			LogRequestBody:     v.GetBool("SERVER_LOGGER_LOG_REQUEST_BODY"),
			LogRequestHeader:   v.GetBool("SERVER_LOGGER_LOG_REQUEST_HEADER"),
			LogRequestQuery:    v.GetBool("SERVER_LOGGER_LOG_REQUEST_QUERY"),
			LogResponseBody:    v.GetBool("SERVER_LOGGER_LOG_RESPONSE_BODY"),
			LogResponseHeader:  v.GetBool("SERVER_LOGGER_LOG_RESPONSE_HEADER"),
			PrettyPrintConsole: v.GetBool("SERVER_LOGGER_PRETTY_PRINT_CONSOLE"),
		},
		Vault: VaultServer{
			Network:         v.GetString("SERVER_VAULT_NETWORK"),
			RootKeyHex:      v.GetString("SERVER_VAULT_ROOT_KEY_HEX"),
			RootKeyFile:     v.GetString("SERVER_VAULT_ROOT_KEY_FILE"),
			AccountIndex:    v.GetUint32("SERVER_VAULT_ACCOUNT_INDEX"),
			StakePoolSize:   v.GetInt("SERVER_VAULT_STAKE_POOL_SIZE"),
			WarnNoScrambler: v.GetBool("SERVER_VAULT_WARN_NO_SCRAMBLER"),
		},
		Management: ManagementServer{
			Secret: v.GetString("SERVER_MANAGEMENT_SECRET"),
		},
	}
}
