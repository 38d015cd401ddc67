package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/zsiec/udpreplay/internal/replay/packet"
)

type Config struct {
	Socket  SocketConfig  `mapstructure:"socket"`
	Data    DataConfig    `mapstructure:"data"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type SocketConfig struct {
	IPAddress   string  `mapstructure:"ip_address"`
	Port        int     `mapstructure:"port"`
	Frequency   float64 `mapstructure:"frequency"`    // Hz, (1e-12, 2000]
	WriteBuffer int     `mapstructure:"write_buffer"` // bytes, 0 keeps the OS default
}

type DataConfig struct {
	Path      string `mapstructure:"path"`
	Delimiter string `mapstructure:"delimiter"`
	Header    int    `mapstructure:"header"` // leading lines to skip
	Type      string `mapstructure:"type"`   // float or double
	Length    int    `mapstructure:"length"` // 0 for dynamic size
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`     // json or text
	Output     string `mapstructure:"output"`     // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"`   // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Port       int    `mapstructure:"port"`
	Path       string `mapstructure:"path"`
}

// requiredKeys lists the settings that have no default. data.path may also
// be given under its legacy name data.csv.
var requiredKeys = []string{
	"socket.ip_address",
	"socket.port",
	"socket.frequency",
	"data.path",
	"data.delimiter",
	"data.header",
	"data.type",
	"data.length",
}

const legacyPathKey = "data.csv"

// Load reads, decodes and validates the configuration file at configPath.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	if !supportedExt(filepath.Ext(configPath)) {
		v.SetConfigType("json")
	}

	// Environment variable override
	v.SetEnvPrefix("UDPREPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if !v.IsSet("data.path") && v.IsSet(legacyPathKey) {
		v.Set("data.path", v.Get(legacyPathKey))
	}
	for _, key := range requiredKeys {
		if !v.IsSet(key) {
			return nil, fmt.Errorf("missing required setting %s", key)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func supportedExt(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	for _, e := range viper.SupportedExts {
		if e == ext {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("socket.write_buffer", 0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", "127.0.0.1")
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}

// Endpoint returns the destination as "host:port".
func (s *SocketConfig) Endpoint() string {
	return net.JoinHostPort(s.IPAddress, strconv.Itoa(s.Port))
}

// DelimiterRune decodes the configured delimiter. Escapes such as `\t` are
// accepted in addition to the literal character.
func (d *DataConfig) DelimiterRune() (rune, error) {
	s := d.Delimiter
	if strings.HasPrefix(s, `\`) {
		unquoted, err := strconv.Unquote(`"` + s + `"`)
		if err != nil {
			return 0, fmt.Errorf("invalid delimiter escape %q", s)
		}
		s = unquoted
	}

	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", d.Delimiter)
	}
	return runes[0], nil
}

// PacketSpec maps the data settings onto a packet layout.
func (d *DataConfig) PacketSpec() (packet.Spec, error) {
	width, err := packet.ParseWidth(d.Type)
	if err != nil {
		return packet.Spec{}, err
	}
	return packet.Spec{Width: width, Count: d.Length}, nil
}

// DynamicLength reports whether packets follow each record's length.
func (d *DataConfig) DynamicLength() bool {
	return d.Length == 0
}
