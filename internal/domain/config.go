package domain

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/moodlews.yaml"
	DefaultService    = "moodle_mobile_app"
	DefaultTimeout    = 30 * time.Second

	DefaultDirectoryFilter = "(uid=%s)"

	EnvServer = "MOODLE_SERVER"
	EnvToken  = "MOODLE_TOKEN"
)

// ReturnFormat selects how raw calls are handed back: decoded into a Value
// ("array") or as the JSON body the server sent ("json").
type ReturnFormat string

const (
	ReturnArray ReturnFormat = "array"
	ReturnJSON  ReturnFormat = "json"
)

func (f ReturnFormat) Valid() bool {
	return f == ReturnArray || f == ReturnJSON
}

// Config is base config in /etc/moodlews.yaml
type Config struct {
	Moodle           MoodleConfig    `yaml:"moodle"`
	Directory        DirectoryConfig `yaml:"directory"`
	StorePath        string          `yaml:"store_path"`
	LogLevel         string          `yaml:"log_level"`
	MetricsFile      string          `yaml:"metrics_file"`
	MetricsNamespace string          `yaml:"metrics_namespace"`
	MetricsBuckets   []float64       `yaml:"metrics_buckets"`
}

type MoodleConfig struct {
	// Server is the web service endpoint, e.g.
	// https://moodle.example.com/webservice/rest/server.php
	Server             string        `yaml:"server"`
	Token              string        `yaml:"token"`
	Service            string        `yaml:"service"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	ReturnFormat       ReturnFormat  `yaml:"return_format"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

// DirectoryConfig points at the LDAP directory new site users are looked up
// in. Filter is a format string receiving the escaped username.
type DirectoryConfig struct {
	URL          string `yaml:"url"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	Filter       string `yaml:"filter"`
	Auth         string `yaml:"auth"`
}

func DefaultConfig() Config {
	return Config{
		Moodle: MoodleConfig{
			Service:      DefaultService,
			ReturnFormat: ReturnArray,
			Timeout:      DefaultTimeout,
		},
		Directory: DirectoryConfig{
			Filter: DefaultDirectoryFilter,
			Auth:   "ldap",
		},
		StorePath: filepath.Join(os.TempDir(), "moodlews.db"),
		LogLevel:  "info",
	}
}

// LoadConfig reads the yaml file at path over the defaults. A missing or
// broken file leaves the defaults in place. MOODLE_SERVER and MOODLE_TOKEN
// override the file.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()

	cfgfile, cfgErr := os.ReadFile(path)
	if cfgErr != nil {
		log.Debug().Msgf("open config file, using defaults: %s", cfgErr.Error())
	} else if cfgErr = yaml.Unmarshal(cfgfile, &cfg); cfgErr != nil {
		log.Warn().Msgf("parse config file, using defaults: %s", cfgErr.Error())
		cfg = DefaultConfig()
	}

	if server := os.Getenv(EnvServer); server != "" {
		cfg.Moodle.Server = server
	}
	if token := os.Getenv(EnvToken); token != "" {
		cfg.Moodle.Token = token
	}

	if !cfg.Moodle.ReturnFormat.Valid() {
		log.Warn().Str("return_format", string(cfg.Moodle.ReturnFormat)).Msg("unknown return format, using array")
		cfg.Moodle.ReturnFormat = ReturnArray
	}
	if cfg.Moodle.Timeout <= 0 {
		cfg.Moodle.Timeout = DefaultTimeout
	}
	if cfg.Directory.Filter == "" {
		cfg.Directory.Filter = DefaultDirectoryFilter
	}

	return &cfg
}
