package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const (
	envListenAddr           = "SIGNAL_LISTEN_ADDR"
	envSharedSecret         = "SIGNAL_SHARED_SECRET"
	envLogLevel             = "SIGNAL_LOG_LEVEL"
	envLogFormat            = "SIGNAL_LOG_FORMAT"
	envStaticDir            = "SIGNAL_STATIC_DIR"
	envAllowedOrigins       = "SIGNAL_ALLOWED_ORIGINS"
	envShutdownTimeout      = "SIGNAL_SHUTDOWN_TIMEOUT"
	envNegotiationTTL       = "NEGOTIATION_TTL"
	envAuthTimeout          = "SIGNALING_AUTH_TIMEOUT"
	envPingInterval         = "SIGNALING_WS_PING_INTERVAL"
	envPongWait             = "SIGNALING_WS_IDLE_TIMEOUT"
	envMaxMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envMaxMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"
	envSendQueueSize        = "SIGNALING_SEND_QUEUE_SIZE"
	envLiveKitURL           = "LIVEKIT_URL"
	envLiveKitAPIKey        = "LIVEKIT_API_KEY"
	envLiveKitAPISecret     = "LIVEKIT_API_SECRET"
	envLiveKitTokenTTL      = "LIVEKIT_TOKEN_TTL"
)

const (
	DefaultListenAddr           = ":8181"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = LogFormatConsole
	DefaultShutdownTimeout      = 5 * time.Second
	DefaultNegotiationTTL       = 10 * time.Minute
	DefaultAuthTimeout          = 2 * time.Second
	DefaultPongWait             = 60 * time.Second
	DefaultPingInterval         = (DefaultPongWait * 9) / 10
	DefaultMaxMessageBytes      = int64(64 * 1024)
	DefaultMaxMessagesPerSecond = 50
	DefaultSendQueueSize        = 256
	DefaultLiveKitTokenTTL      = 6 * time.Hour
)

type LogFormat string

const (
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

type Config struct {
	ListenAddr      string
	SharedSecret    string
	LogLevel        string
	LogFormat       LogFormat
	StaticDir       string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration

	NegotiationTTL       time.Duration
	AuthTimeout          time.Duration
	PingInterval         time.Duration
	PongWait             time.Duration
	MaxMessageBytes      int64
	MaxMessagesPerSecond int
	SendQueueSize        int

	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string
	LiveKitTokenTTL  time.Duration
}

func Default() Config {
	return Config{
		ListenAddr:           DefaultListenAddr,
		LogLevel:             DefaultLogLevel,
		LogFormat:            DefaultLogFormat,
		ShutdownTimeout:      DefaultShutdownTimeout,
		NegotiationTTL:       DefaultNegotiationTTL,
		AuthTimeout:          DefaultAuthTimeout,
		PingInterval:         DefaultPingInterval,
		PongWait:             DefaultPongWait,
		MaxMessageBytes:      DefaultMaxMessageBytes,
		MaxMessagesPerSecond: DefaultMaxMessagesPerSecond,
		SendQueueSize:        DefaultSendQueueSize,
		LiveKitTokenTTL:      DefaultLiveKitTokenTTL,
	}
}

// LiveKitEnabled reports whether the SFU broker endpoints should be served.
func (c Config) LiveKitEnabled() bool {
	return c.LiveKitURL != "" && c.LiveKitAPIKey != "" && c.LiveKitAPISecret != ""
}

// RegisterFlags adds every setting to fs. Flags only override the
// environment when set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("listen-addr", d.ListenAddr, "HTTP listen address")
	fs.String("shared-secret", "", "secret peers must present to connect")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("log-format", string(d.LogFormat), "log format (console, json)")
	fs.String("static-dir", "", "directory served at / (disabled when empty)")
	fs.StringSlice("allowed-origins", nil, "allowed websocket origins (all when empty)")
	fs.Duration("shutdown-timeout", d.ShutdownTimeout, "graceful shutdown timeout")
	fs.Duration("negotiation-ttl", d.NegotiationTTL, "expire negotiations idle for this long (0 disables)")
	fs.Duration("auth-timeout", d.AuthTimeout, "time allowed for the auth message")
	fs.Duration("ping-interval", d.PingInterval, "websocket ping interval")
	fs.Duration("pong-wait", d.PongWait, "close connections silent for this long")
	fs.Int64("max-message-bytes", d.MaxMessageBytes, "maximum inbound signaling message size")
	fs.Int("max-messages-per-second", d.MaxMessagesPerSecond, "per-connection inbound message rate")
	fs.Int("send-queue-size", d.SendQueueSize, "per-connection outbound queue length")
	fs.String("livekit-url", "", "LiveKit server URL")
	fs.String("livekit-api-key", "", "LiveKit API key")
	fs.String("livekit-api-secret", "", "LiveKit API secret")
	fs.Duration("livekit-token-ttl", d.LiveKitTokenTTL, "validity of issued LiveKit tokens")
}

// Load resolves settings as flag > environment > default. fs may be nil.
func Load(fs *pflag.FlagSet, lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Default()
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if fs != nil {
		if err := applyFlags(&cfg, fs); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.SharedSecret == "" {
		return fmt.Errorf("%s must be set", envSharedSecret)
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	if c.NegotiationTTL < 0 {
		return fmt.Errorf("negotiation ttl must be >= 0, got %s", c.NegotiationTTL)
	}
	if c.AuthTimeout <= 0 {
		return fmt.Errorf("auth timeout must be > 0, got %s", c.AuthTimeout)
	}
	if c.PongWait <= 0 || c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		return fmt.Errorf("ping interval (%s) must be positive and below pong wait (%s)", c.PingInterval, c.PongWait)
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("max message bytes must be > 0, got %d", c.MaxMessageBytes)
	}
	if c.MaxMessagesPerSecond <= 0 {
		return fmt.Errorf("max messages per second must be > 0, got %d", c.MaxMessagesPerSecond)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("send queue size must be > 0, got %d", c.SendQueueSize)
	}
	lk := []string{c.LiveKitURL, c.LiveKitAPIKey, c.LiveKitAPISecret}
	set := 0
	for _, v := range lk {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(lk) {
		return fmt.Errorf("%s, %s and %s must be set together", envLiveKitURL, envLiveKitAPIKey, envLiveKitAPISecret)
	}
	if c.LiveKitTokenTTL <= 0 {
		return fmt.Errorf("livekit token ttl must be > 0, got %s", c.LiveKitTokenTTL)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = d
		return nil
	}
	integer := func(key string, dst *int64) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	str(envListenAddr, &cfg.ListenAddr)
	str(envSharedSecret, &cfg.SharedSecret)
	str(envLogLevel, &cfg.LogLevel)
	var format string
	str(envLogFormat, &format)
	if format != "" {
		cfg.LogFormat = LogFormat(strings.ToLower(format))
	}
	str(envStaticDir, &cfg.StaticDir)
	var origins string
	str(envAllowedOrigins, &origins)
	if origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	str(envLiveKitURL, &cfg.LiveKitURL)
	str(envLiveKitAPIKey, &cfg.LiveKitAPIKey)
	str(envLiveKitAPISecret, &cfg.LiveKitAPISecret)

	for key, dst := range map[string]*time.Duration{
		envShutdownTimeout: &cfg.ShutdownTimeout,
		envNegotiationTTL:  &cfg.NegotiationTTL,
		envAuthTimeout:     &cfg.AuthTimeout,
		envPingInterval:    &cfg.PingInterval,
		envPongWait:        &cfg.PongWait,
		envLiveKitTokenTTL: &cfg.LiveKitTokenTTL,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}

	if err := integer(envMaxMessageBytes, &cfg.MaxMessageBytes); err != nil {
		return err
	}
	rate := int64(cfg.MaxMessagesPerSecond)
	if err := integer(envMaxMessagesPerSecond, &rate); err != nil {
		return err
	}
	cfg.MaxMessagesPerSecond = int(rate)
	queue := int64(cfg.SendQueueSize)
	if err := integer(envSendQueueSize, &queue); err != nil {
		return err
	}
	cfg.SendQueueSize = int(queue)
	return nil
}

func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "listen-addr":
			cfg.ListenAddr, err = fs.GetString(f.Name)
		case "shared-secret":
			cfg.SharedSecret, err = fs.GetString(f.Name)
		case "log-level":
			cfg.LogLevel, err = fs.GetString(f.Name)
		case "log-format":
			var v string
			v, err = fs.GetString(f.Name)
			cfg.LogFormat = LogFormat(strings.ToLower(v))
		case "static-dir":
			cfg.StaticDir, err = fs.GetString(f.Name)
		case "allowed-origins":
			cfg.AllowedOrigins, err = fs.GetStringSlice(f.Name)
		case "shutdown-timeout":
			cfg.ShutdownTimeout, err = fs.GetDuration(f.Name)
		case "negotiation-ttl":
			cfg.NegotiationTTL, err = fs.GetDuration(f.Name)
		case "auth-timeout":
			cfg.AuthTimeout, err = fs.GetDuration(f.Name)
		case "ping-interval":
			cfg.PingInterval, err = fs.GetDuration(f.Name)
		case "pong-wait":
			cfg.PongWait, err = fs.GetDuration(f.Name)
		case "max-message-bytes":
			cfg.MaxMessageBytes, err = fs.GetInt64(f.Name)
		case "max-messages-per-second":
			cfg.MaxMessagesPerSecond, err = fs.GetInt(f.Name)
		case "send-queue-size":
			cfg.SendQueueSize, err = fs.GetInt(f.Name)
		case "livekit-url":
			cfg.LiveKitURL, err = fs.GetString(f.Name)
		case "livekit-api-key":
			cfg.LiveKitAPIKey, err = fs.GetString(f.Name)
		case "livekit-api-secret":
			cfg.LiveKitAPISecret, err = fs.GetString(f.Name)
		case "livekit-token-ttl":
			cfg.LiveKitTokenTTL, err = fs.GetDuration(f.Name)
		}
	})
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
