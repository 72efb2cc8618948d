// Package config resolves the ssfs runtime configuration from command-line
// flags and an optional YAML file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither a flag nor the config file sets a value.
const (
	DefaultIP       = "0.0.0.0"
	DefaultPort     = 8443
	DefaultRoot     = "."
	DefaultLogLevel = "info"
)

// ErrVersion is returned by Parse when --version was given.
var ErrVersion = errors.New("version requested")

// AuthConfig enables HTTP Basic Auth when both fields are set.
type AuthConfig struct {
	// Username is the Basic Auth user name.
	Username string `yaml:"username"`

	// PasswordHash is an argon2id hash in PHC string format, as printed by
	// ssfs-passwd.
	PasswordHash string `yaml:"password_hash"`
}

// Enabled reports whether credentials are configured.
func (a AuthConfig) Enabled() bool {
	return a.Username != "" && a.PasswordHash != ""
}

// Config holds the configuration for the ssfs server.
type Config struct {
	// IP is the address to bind to. Example: "0.0.0.0" or "::1"
	IP string `yaml:"ip"`

	// Port is the TCP port to bind to.
	Port uint16 `yaml:"port"`

	// Root is the directory served at "/". Defaults to the working directory.
	Root string `yaml:"root"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// RateLimit is the sustained number of requests per second allowed per
	// client IP. Zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the number of requests a client may make at once before
	// RateLimit applies. Zero means the ceiling of RateLimit.
	RateBurst int `yaml:"rate_burst"`

	// Auth optionally protects every path with Basic Auth.
	Auth AuthConfig `yaml:"auth"`
}

// Default returns a Config with the defaults applied.
func Default() Config {
	return Config{
		IP:       DefaultIP,
		Port:     DefaultPort,
		Root:     DefaultRoot,
		LogLevel: DefaultLogLevel,
	}
}

// Addr returns the host:port address to listen on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.IP, strconv.FormatUint(uint64(c.Port), 10))
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}

// Validate checks the configuration for values that cannot be served.
func (c Config) Validate() error {
	if net.ParseIP(c.IP) == nil {
		return fmt.Errorf("invalid IP address %q", c.IP)
	}
	if c.Root == "" {
		return errors.New("root directory must not be empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %v", c.RateLimit)
	}
	if c.RateBurst < 0 {
		return fmt.Errorf("rate burst must not be negative, got %d", c.RateBurst)
	}
	if (c.Auth.Username == "") != (c.Auth.PasswordHash == "") {
		return errors.New("auth requires both username and password_hash")
	}
	return nil
}

// LoadFile reads a YAML config file on top of the defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

const usageLine = `usage: ssfs [--ip address] [--port port] [--root dir] [--config file]

Serves the files under root over HTTPS with an embedded self-signed certificate.

options:
`

// Parse resolves a Config from command-line arguments (without the program
// name). Flags given on the command line take precedence over the config
// file, which takes precedence over the defaults. Errors are written to
// output together with the usage text, so callers need not print them again.
// It returns flag.ErrHelp for -h and ErrVersion for --version.
func Parse(args []string, output io.Writer) (Config, error) {
	def := Default()

	fs := flag.NewFlagSet("ssfs", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageLine)
		fs.PrintDefaults()
	}

	port := portFlag(def.Port)
	var (
		ip          = fs.String("ip", def.IP, "IP address to bind to")
		root        = fs.String("root", def.Root, "directory to serve")
		configFile  = fs.String("config", "", "optional YAML config file")
		logLevel    = fs.String("log-level", def.LogLevel, "log level: debug, info, warn or error")
		rateLimit   = fs.Float64("rate-limit", def.RateLimit, "requests per second allowed per client IP (0 disables)")
		rateBurst   = fs.Int("rate-burst", def.RateBurst, "request burst allowed per client IP")
		showVersion = fs.Bool("version", false, "print version and exit")
	)
	fs.Var(&port, "port", "port to bind to")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if *showVersion {
		return Config{}, ErrVersion
	}

	// fail reports an error the flag package did not already print.
	fail := func(err error) (Config, error) {
		fmt.Fprintln(fs.Output(), err)
		fs.Usage()
		return Config{}, err
	}

	if fs.NArg() > 0 {
		return fail(fmt.Errorf("unexpected argument %q", fs.Arg(0)))
	}

	cfg := def
	if *configFile != "" {
		var err error
		if cfg, err = LoadFile(*configFile); err != nil {
			return fail(err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ip":
			cfg.IP = *ip
		case "port":
			cfg.Port = uint16(port)
		case "root":
			cfg.Root = *root
		case "log-level":
			cfg.LogLevel = *logLevel
		case "rate-limit":
			cfg.RateLimit = *rateLimit
		case "rate-burst":
			cfg.RateBurst = *rateBurst
		}
	})

	if err := cfg.Validate(); err != nil {
		return fail(err)
	}
	return cfg, nil
}

// portFlag is a flag.Value accepting a TCP port number.
type portFlag uint16

func (p *portFlag) String() string {
	return strconv.FormatUint(uint64(*p), 10)
}

func (p *portFlag) Set(s string) error {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return errors.New("port must be a number between 0 and 65535")
	}
	*p = portFlag(v)
	return nil
}
