// Package config loads sock-cli profiles from INI files, environment
// variables and defaults, in increasing order of precedence: defaults, file, env.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/ini.v1"
)

const (
	DefaultPort    = 8001
	fallbackHost   = "127.0.0.1"
	defaultTimeout = time.Second

	EnvHost     = "SOCKCYCLE_HOST"
	EnvPort     = "SOCKCYCLE_PORT"
	EnvLogLevel = "SOCKCYCLE_LOG_LEVEL"
)

// TargetConf is the [target] section.
type TargetConf struct {
	Host    string `ini:"host"`
	Port    int    `ini:"port"`
	Network string `ini:"network"`
}

// TimeoutConf is the [timeouts] section. Values use time.ParseDuration syntax.
type TimeoutConf struct {
	Connect time.Duration `ini:"connect"`
	Write   time.Duration `ini:"write"`
	Read    time.Duration `ini:"read"`
}

// FramingConf is the [framing] section.
type FramingConf struct {
	Delimiter       string `ini:"delimiter"` // Go escape syntax, e.g. \n or \x03
	AppendDelimiter bool   `ini:"append_delimiter"`
	Encoding        string `ini:"encoding"`
	ChunkSize       int    `ini:"chunk_size"`
	MaxResponseSize int    `ini:"max_response_size"`
}

// LogConf is the [log] section.
type LogConf struct {
	Level string `ini:"level"`
}

type Config struct {
	TargetConf  `ini:"target"`
	TimeoutConf `ini:"timeouts"`
	FramingConf `ini:"framing"`
	LogConf     `ini:"log"`
}

// Default returns a profile targeting port 8001 on the first local IPv4 address.
func Default() Config {
	host, err := LocalIPv4()
	if err != nil {
		host = fallbackHost
	}
	return Config{
		TargetConf:  TargetConf{Host: host, Port: DefaultPort, Network: "tcp"},
		TimeoutConf: TimeoutConf{Connect: defaultTimeout, Write: defaultTimeout, Read: defaultTimeout},
		FramingConf: FramingConf{Delimiter: `\n`, AppendDelimiter: true, Encoding: "utf-8"},
		LogConf:     LogConf{Level: "info"},
	}
}

// Load overlays fileName onto cfg and then applies environment overrides.
// Keys missing from the file keep their current values.
func Load(cfg *Config, fileName string) error {
	f, err := ini.Load(fileName)
	if err != nil {
		return fmt.Errorf("config: load %s: %w", fileName, err)
	}
	if err := f.MapTo(cfg); err != nil {
		return fmt.Errorf("config: map %s: %w", fileName, err)
	}
	ApplyEnv(cfg)
	return cfg.Validate()
}

// ApplyEnv overrides host, port and log level from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvHost); v != "" {
		cfg.Host = v
	}
	overrideFromEnvInt(&cfg.Port, EnvPort)
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Level = v
	}
}

// Validate checks ranges and that the delimiter is a single byte.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("config: target host is empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: target port %d out of range", c.Port)
	}
	if c.Connect < 0 || c.Write < 0 || c.Read < 0 {
		return errors.New("config: timeouts must not be negative")
	}
	if _, err := c.DelimiterByte(); err != nil {
		return err
	}
	return nil
}

// DelimiterByte decodes the escaped delimiter into exactly one byte.
func (c *Config) DelimiterByte() (byte, error) {
	return ParseDelimiter(c.Delimiter)
}

// ParseDelimiter decodes Go escape syntax (\n, \r, \x03, \x00, \t) or a
// literal character into a single byte.
func ParseDelimiter(s string) (byte, error) {
	switch len(s) {
	case 0:
		return 0, errors.New("config: empty delimiter")
	case 1:
		return s[0], nil
	}
	unq, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return 0, fmt.Errorf("config: delimiter %q: %w", s, err)
	}
	if len(unq) != 1 {
		return 0, fmt.Errorf("config: delimiter %q is not a single byte", s)
	}
	return unq[0], nil
}

// LocalIPv4 returns the first non-loopback IPv4 address of this host.
func LocalIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() {
			continue
		}
		if ip4 := ipn.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", errors.New("config: no network adapter with an IPv4 address")
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
