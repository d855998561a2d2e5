package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is where the integration's configuration lives on a Puppet server.
const DefaultPath = "/etc/puppetlabs/puppet/servicenow_cmdb.yaml"

// EnvPrefix is stripped from environment variables before they are mapped onto config keys.
const EnvPrefix = "SERVICENOW_"

// sections lists the nested config blocks so SERVICENOW_LOGGING_LEVEL maps to logging.level
// while SERVICENOW_CERTNAME_FIELD stays certname_field.
var sections = []string{"logging", "metrics", "classifier", "hiera_eyaml", "notify"}

type Config struct {
	Instance         string        `koanf:"instance"`
	User             string        `koanf:"user"`
	Password         Secret        `koanf:"password"`
	OAuthToken       Secret        `koanf:"oauth_token"`
	Table            string        `koanf:"table"`
	CertnameField    string        `koanf:"certname_field"`
	ClassesField     string        `koanf:"classes_field"`
	EnvironmentField string        `koanf:"environment_field"`
	Debug            bool          `koanf:"debug"`
	VerifySSL        bool          `koanf:"verify_ssl"`
	Timeout          time.Duration `koanf:"timeout"`

	Logging    LogConfig        `koanf:"logging"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Classifier ClassifierConfig `koanf:"classifier"`
	HieraEyaml EyamlConfig      `koanf:"hiera_eyaml"`
	Notify     NotifyConfig     `koanf:"notify"`
}

type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	OutputPath string `koanf:"output_path"` // file path, "stdout" or "stderr"
	Encoding   string `koanf:"encoding"`    // json or console
}

type MetricsConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Textfile string `koanf:"textfile"` // node_exporter textfile collector target
}

// ClassifierConfig points at the node classifier service API.
type ClassifierConfig struct {
	URL      string `koanf:"url"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	CAFile   string `koanf:"ca_file"`
}

// EyamlConfig locates the hiera-eyaml PKCS7 key pair used to decrypt credentials.
type EyamlConfig struct {
	ConfigFile string `koanf:"config_file"`
	PrivateKey string `koanf:"pkcs7_private_key"`
	PublicKey  string `koanf:"pkcs7_public_key"`
}

type NotifyConfig struct {
	Driver   string `koanf:"driver"` // none, nats or mqtt
	URL      string `koanf:"url"`
	Subject  string `koanf:"subject"`
	ClientID string `koanf:"client_id"`
	Username string `koanf:"username"`
	Password Secret `koanf:"password"`
}

// Load reads the YAML configuration file, applies SERVICENOW_* environment overrides,
// fills defaults and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadForClassifier is Load for commands that only talk to the node classifier:
// a missing file is tolerated and ServiceNow connection settings are not required.
func LoadForClassifier(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	return load(path, false)
}

func load(path string, requireServiceNow bool) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config, requireServiceNow); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// envKey maps SERVICENOW_HIERA_EYAML_PKCS7_PRIVATE_KEY to hiera_eyaml.pkcs7_private_key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

func applyDefaults(config *Config) {
	if config.Table == "" {
		config.Table = "cmdb_ci"
	}
	if config.CertnameField == "" {
		config.CertnameField = "fqdn"
	}
	if config.ClassesField == "" {
		config.ClassesField = "u_puppet_classes"
	}
	if config.EnvironmentField == "" {
		config.EnvironmentField = "u_puppet_environment"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	// stdout carries the classification payload, so logs default to stderr
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.OutputPath == "" {
		config.Logging.OutputPath = "stderr"
	}
	if config.Logging.Encoding == "" {
		config.Logging.Encoding = "json"
	}

	if config.Classifier.URL == "" {
		config.Classifier.URL = "https://localhost:4433/classifier-api"
	}

	if config.HieraEyaml.ConfigFile == "" {
		config.HieraEyaml.ConfigFile = "/etc/eyaml/config.yaml"
	}

	if config.Notify.Driver == "" {
		config.Notify.Driver = "none"
	}
	if config.Notify.Subject == "" {
		config.Notify.Subject = "servicenow.cmdb.events"
	}
	if config.Notify.ClientID == "" {
		config.Notify.ClientID = "servicenow-cmdb-integration"
	}
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config, requireServiceNow bool) error {
	if requireServiceNow {
		if cfg.Instance == "" {
			return fmt.Errorf("servicenow instance is required")
		}
		if !cfg.OAuthToken.IsSet() && (cfg.User == "" || !cfg.Password.IsSet()) {
			return fmt.Errorf("user/password or oauth_token must be specified")
		}
	}

	if err := validateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	if (cfg.Classifier.CertFile == "") != (cfg.Classifier.KeyFile == "") {
		return fmt.Errorf("classifier cert_file and key_file must be set together")
	}

	switch cfg.Notify.Driver {
	case "none":
	case "nats", "mqtt":
		if cfg.Notify.URL == "" {
			return fmt.Errorf("notify url is required for the %s driver", cfg.Notify.Driver)
		}
	default:
		return fmt.Errorf("invalid notify driver: %s", cfg.Notify.Driver)
	}

	return nil
}

func validateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level: %s", level)
	}
}

// ApplyOverrides applies command line flag overrides to the configuration.
// An unknown log level is rejected and leaves the configuration untouched.
func (c *Config) ApplyOverrides(logLevel, classifierURL, metricsTextfile string, debug bool) error {
	if logLevel != "" {
		if err := validateLogLevel(logLevel); err != nil {
			return err
		}
		c.Logging.Level = logLevel
	}
	if classifierURL != "" {
		c.Classifier.URL = classifierURL
	}
	if metricsTextfile != "" {
		c.Metrics.Enabled = true
		c.Metrics.Textfile = metricsTextfile
	}
	if debug {
		c.Debug = true
		c.Logging.Level = "debug"
	}
	return nil
}
