// Package config loads turbobot settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bdobrica/turbobot/common/environment"
)

// Defaults for the settings that have one.
const (
	DefaultAPIBaseURL     = "https://api.sys-allnet.com"
	DefaultBotName        = "XMaoBot-Turbo"
	DefaultSessionTimeout = 60 * time.Second
	DefaultRemoteTimeout  = 10 * time.Second
	DefaultUploadTimeout  = 60 * time.Second
	DefaultDataFile       = "./turbobot.yaml"
	DefaultDBPath         = "./turbobot.db"
	DefaultCommandStart   = "/"
)

// MatrixConfig enables the Matrix transport when all fields are set.
type MatrixConfig struct {
	Homeserver  string
	UserID      string
	AccessToken string
}

// Enabled reports whether any Matrix setting was provided.
func (m MatrixConfig) Enabled() bool {
	return m.Homeserver != "" || m.UserID != "" || m.AccessToken != ""
}

// OneBotConfig enables the OneBot transport when URL is set.
type OneBotConfig struct {
	URL         string
	AccessToken string
}

// Enabled reports whether the OneBot transport is configured.
func (o OneBotConfig) Enabled() bool { return o.URL != "" }

// Config is the full runtime configuration.
type Config struct {
	APIBaseURL    string
	BotName       string
	AllowedGroups []string

	SessionTimeout time.Duration
	RemoteTimeout  time.Duration
	UploadTimeout  time.Duration

	DataFile    string
	DBPath      string
	CatalogPath string

	CommandStart  string
	RequirePrefix bool
	RecallBind    bool

	// HTTPAddr is the health/status/metrics listener. Empty disables it.
	HTTPAddr string

	LogLevel  string
	LogFormat string

	Matrix MatrixConfig
	OneBot OneBotConfig
}

// Load reads the environment and validates the result. Durations that do not
// parse are reported rather than replaced by defaults.
func Load() (*Config, error) {
	var errs []error
	duration := func(name string, def time.Duration) time.Duration {
		d, err := environment.Duration(name, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	cfg := &Config{
		APIBaseURL:     strings.TrimRight(environment.StringOr("TURBOBOT_API_BASE_URL", DefaultAPIBaseURL), "/"),
		BotName:        environment.StringOr("TURBOBOT_BOT_NAME", DefaultBotName),
		AllowedGroups:  environment.StringSliceOr("TURBOBOT_ALLOWED_GROUPS", nil),
		SessionTimeout: duration("TURBOBOT_SESSION_TIMEOUT", DefaultSessionTimeout),
		RemoteTimeout:  duration("TURBOBOT_REMOTE_TIMEOUT", DefaultRemoteTimeout),
		UploadTimeout:  duration("TURBOBOT_UPLOAD_TIMEOUT", DefaultUploadTimeout),
		DataFile:       environment.StringOr("TURBOBOT_DATA_FILE", DefaultDataFile),
		DBPath:         environment.StringOr("TURBOBOT_DB_PATH", DefaultDBPath),
		CatalogPath:    environment.StringOr("TURBOBOT_CATALOG_PATH", ""),
		CommandStart:   environment.StringOr("TURBOBOT_COMMAND_START", DefaultCommandStart),
		RequirePrefix:  environment.BoolOr("TURBOBOT_REQUIRE_PREFIX", true),
		RecallBind:     environment.BoolOr("TURBOBOT_RECALL_BIND", true),
		HTTPAddr:       environment.StringOr("TURBOBOT_HTTP_ADDR", ""),
		LogLevel:       environment.StringOr("TURBOBOT_LOG_LEVEL", "info"),
		LogFormat:      environment.StringOr("TURBOBOT_LOG_FORMAT", "text"),
		Matrix: MatrixConfig{
			Homeserver:  environment.StringOr("MATRIX_HOMESERVER", ""),
			UserID:      environment.StringOr("MATRIX_USER_ID", ""),
			AccessToken: environment.StringOr("MATRIX_ACCESS_TOKEN", ""),
		},
		OneBot: OneBotConfig{
			URL:         environment.StringOr("ONEBOT_WS_URL", ""),
			AccessToken: environment.StringOr("ONEBOT_ACCESS_TOKEN", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if err := checkURL(c.APIBaseURL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("TURBOBOT_API_BASE_URL: %w", err))
	}
	for name, d := range map[string]time.Duration{
		"TURBOBOT_SESSION_TIMEOUT": c.SessionTimeout,
		"TURBOBOT_REMOTE_TIMEOUT":  c.RemoteTimeout,
		"TURBOBOT_UPLOAD_TIMEOUT":  c.UploadTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %s", name, d))
		}
	}
	if c.CommandStart == "" {
		errs = append(errs, errors.New("TURBOBOT_COMMAND_START: must not be empty"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("TURBOBOT_LOG_FORMAT: unknown format %q", c.LogFormat))
	}

	if !c.Matrix.Enabled() && !c.OneBot.Enabled() {
		errs = append(errs, errors.New("no transport configured: set MATRIX_HOMESERVER/MATRIX_USER_ID/MATRIX_ACCESS_TOKEN or ONEBOT_WS_URL"))
	}
	if c.Matrix.Enabled() {
		if c.Matrix.Homeserver == "" || c.Matrix.UserID == "" || c.Matrix.AccessToken == "" {
			errs = append(errs, errors.New("matrix: MATRIX_HOMESERVER, MATRIX_USER_ID and MATRIX_ACCESS_TOKEN are all required"))
		} else if err := checkURL(c.Matrix.Homeserver, "http", "https"); err != nil {
			errs = append(errs, fmt.Errorf("MATRIX_HOMESERVER: %w", err))
		}
	}
	if c.OneBot.Enabled() {
		if err := checkURL(c.OneBot.URL, "ws", "wss"); err != nil {
			errs = append(errs, fmt.Errorf("ONEBOT_WS_URL: %w", err))
		}
	}
	return errors.Join(errs...)
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q is not a %s URL", raw, strings.Join(schemes, "/"))
}
