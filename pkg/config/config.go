package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	ProxyPort   int    `mapstructure:"proxy_port"`
	AdminPort   int    `mapstructure:"admin_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	SecretKey   string `mapstructure:"secret_key"`
}

type SecurityConfig struct {
	// Environment switches thresholds: "production" is stricter than
	// "development".
	Environment string `mapstructure:"environment"`
	// SigningSecret is the HMAC key for the optional request-signature
	// scheme checked by the request integrity plugin.
	SigningSecret string `mapstructure:"signing_secret"`
	// TrustedProxyHeaders is the prioritized list of headers consulted to
	// resolve the real client IP behind the front-door proxy.
	TrustedProxyHeaders []string        `mapstructure:"trusted_proxy_headers"`
	EndpointLimits      []EndpointLimit `mapstructure:"endpoint_limits"`
	HoneypotExemptPaths []string        `mapstructure:"honeypot_exempt_paths"`
}

// EndpointLimit is a fixed-window counter applied to a named sensitive
// endpoint, independent of the adaptive per-identifier token bucket.
type EndpointLimit struct {
	Name       string `mapstructure:"name"`
	PathPrefix string `mapstructure:"path_prefix"`
	Limit      int    `mapstructure:"limit"`
	Window     string `mapstructure:"window"`
}

type UpstreamConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Scheme  string `mapstructure:"scheme"`
	Timeout string `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load config file: %w", err)
	}
	setDefaultValues()
	return nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Environment variables alone are a valid configuration.
			if err := viper.Unmarshal(out); err != nil {
				return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
			}
			return nil
		}
		return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func setDefaultValues() {
	if globalConfig.Server.ProxyPort == 0 {
		globalConfig.Server.ProxyPort = 8080
	}
	if globalConfig.Server.AdminPort == 0 {
		globalConfig.Server.AdminPort = 8081
	}
	if globalConfig.Server.MetricsPort == 0 {
		globalConfig.Server.MetricsPort = 9090
	}
	if globalConfig.Security.Environment == "" {
		globalConfig.Security.Environment = "development"
	}
	if globalConfig.Upstream.Scheme == "" {
		globalConfig.Upstream.Scheme = "http"
	}
	if len(globalConfig.Security.TrustedProxyHeaders) == 0 {
		globalConfig.Security.TrustedProxyHeaders = []string{
			"CF-Connecting-IP",
			"True-Client-IP",
			"X-Forwarded-For",
		}
	}
	if len(globalConfig.Security.HoneypotExemptPaths) == 0 {
		globalConfig.Security.HoneypotExemptPaths = []string{
			"/api/withdrawals",
			"/api/wallet/withdraw",
		}
	}
	if len(globalConfig.Security.EndpointLimits) == 0 {
		globalConfig.Security.EndpointLimits = DefaultEndpointLimits(globalConfig.Security.Environment)
	}
}

// DefaultEndpointLimits returns the per-endpoint fixed-window thresholds
// for the given environment.
func DefaultEndpointLimits(environment string) []EndpointLimit {
	if environment == "production" {
		return []EndpointLimit{
			{Name: "login", PathPrefix: "/api/auth/login", Limit: 5, Window: "15m"},
			{Name: "withdrawal", PathPrefix: "/api/withdrawals", Limit: 10, Window: "1h"},
			{Name: "bet", PathPrefix: "/api/bets", Limit: 30, Window: "1m"},
		}
	}
	return []EndpointLimit{
		{Name: "login", PathPrefix: "/api/auth/login", Limit: 50, Window: "15m"},
		{Name: "withdrawal", PathPrefix: "/api/withdrawals", Limit: 100, Window: "1h"},
		{Name: "bet", PathPrefix: "/api/bets", Limit: 300, Window: "1m"},
	}
}

func GetConfig() *Config {
	return &globalConfig
}
