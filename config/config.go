package config

import (
	"os"
	"path"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DBConfig Database config
type DBConfig struct {
	Type     string `yaml:"type"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn" split_words:"true"`
	IdleConn int    `yaml:"idle_conn" split_words:"true"`
	Debug    bool   `yaml:"debug"`
}

// SysConfig System config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig admin web server
type WebConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Secret string `yaml:"secret"`
}

// LogConfig logger config
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable" split_words:"true"`
	Filename   string `yaml:"filename"`
}

// ChannelConfig outbound messaging channel runtime options.
// Credentials are not here: they live in the settings store.
type ChannelConfig struct {
	Store              string        `yaml:"store"` // gorm or bolt
	HTTPTimeout        time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT"`
	Workers            int           `yaml:"workers"`
	PollInterval       string        `yaml:"poll_interval" split_words:"true"`
	EventRetentionDays int           `yaml:"event_retention_days" split_words:"true"`
	// IgnoredAuditRate caps audit rows/s for webhook deliveries that leave the state alone.
	IgnoredAuditRate float64 `yaml:"ignored_audit_rate" split_words:"true"`
}

type AppConfig struct {
	System   SysConfig     `yaml:"system"`
	Web      WebConfig     `yaml:"web"`
	Database DBConfig      `yaml:"database"`
	Logger   LogConfig     `yaml:"logger"`
	Channel  ChannelConfig `yaml:"channel"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) InitDirs() error {
	for _, dir := range []string{c.GetLogDir(), c.GetDataDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create dir %s", dir)
		}
	}
	return nil
}

// DefaultAppConfig returns the built-in configuration used when no file is given.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "oasis",
			Location: "America/Bogota",
			Workdir:  "/var/oasis",
		},
		Web: WebConfig{
			Host:   "0.0.0.0",
			Port:   1816,
			Secret: "9b6de5cc-0731-1203-xxtt-0f568ac9da37",
		},
		Database: DBConfig{
			Type:     "postgres",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "oasis",
			User:     "postgres",
			Passwd:   "myroot",
			MaxConn:  50,
			IdleConn: 10,
		},
		Logger: LogConfig{
			Mode:     "development",
			Filename: "/var/oasis/logs/oasis.log",
		},
		Channel: ChannelConfig{
			Store:              "gorm",
			HTTPTimeout:        30 * time.Second,
			Workers:            16,
			PollInterval:       "@every 1m",
			EventRetentionDays: 30,
			IgnoredAuditRate:   5,
		},
	}
}

// LoadConfig reads the yaml file (when present) over the defaults and then
// applies OASIS_<GROUP>_<FIELD> environment overrides.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if cfile = strings.TrimSpace(cfile); cfile != "" {
		data, err := os.ReadFile(cfile)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", cfile)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", cfile)
		}
	}

	groups := []struct {
		prefix string
		spec   interface{}
	}{
		{"OASIS_SYSTEM", &cfg.System},
		{"OASIS_WEB", &cfg.Web},
		{"OASIS_DB", &cfg.Database},
		{"OASIS_LOGGER", &cfg.Logger},
		{"OASIS_CHANNEL", &cfg.Channel},
	}
	for _, g := range groups {
		if err := envconfig.Process(g.prefix, g.spec); err != nil {
			return nil, errors.Wrapf(err, "env overrides %s", g.prefix)
		}
	}

	if cfg.Channel.HTTPTimeout <= 0 {
		cfg.Channel.HTTPTimeout = 30 * time.Second
	}
	if cfg.Channel.Workers <= 0 {
		cfg.Channel.Workers = 16
	}
	return cfg, nil
}
