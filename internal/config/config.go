// Package config loads and validates the top-level config.yaml: browser,
// platform, system, telemetry and CAPTCHA handler settings. Missing
// required fields are fatal; everything else is clamped to a sane
// default and reported as a Warning so a slightly malformed file still
// starts the daemon.
package config

import (
	"fmt"
	"os"

	"github.com/jobpilot/automation/internal/types"
	"gopkg.in/yaml.v3"
)

// Viewport is the browser window size in pixels.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// BrowserConfig controls how the browser driver is launched or attached.
type BrowserConfig struct {
	Type           string   `yaml:"type"`
	Headless       bool     `yaml:"headless"`
	CDPPort        int      `yaml:"cdp_port"`
	Viewport       Viewport `yaml:"viewport"`
	UserAgent      string   `yaml:"user_agent"`
	AttachExisting bool     `yaml:"attach_existing"`
	DataDir        string   `yaml:"data_dir"`
}

// LinkedInConfig holds LinkedIn-specific credentials and pacing.
type LinkedInConfig struct {
	Email          string  `yaml:"email"`
	Password       string  `yaml:"password"`
	DefaultTimeout int     `yaml:"default_timeout"`
	MinDelay       float64 `yaml:"min_delay"`
	MaxDelay       float64 `yaml:"max_delay"`
	MaxRetries     int     `yaml:"max_retries"`
}

// PlatformConfig groups settings for each supported job platform. Only
// LinkedIn is wired today; the shape leaves room for a sibling platform
// block without a breaking change.
type PlatformConfig struct {
	LinkedIn LinkedInConfig `yaml:"linkedin"`
}

// SystemConfig controls process-wide behavior not specific to any one
// platform or browser.
type SystemConfig struct {
	DebugMode  bool    `yaml:"debug_mode"`
	LogLevel   string  `yaml:"log_level"`
	DataDir    string  `yaml:"data_dir"`
	MaxRetries int     `yaml:"max_retries"`
	RetryDelay float64 `yaml:"retry_delay"`
}

// TelemetryConfig controls the JSONL telemetry mirror written alongside
// the Learning Pipeline's outcome records.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	StoragePath string `yaml:"storage_path"`
}

// SlackWebhookConfig configures an optional Slack channel for operator
// alerts (logged-out sessions, CAPTCHA manual-solve fallbacks). Left with
// an empty WebhookURL, the channel is never registered.
type SlackWebhookConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

// DiscordWebhookConfig configures an optional Discord channel, same
// activation rule as SlackWebhookConfig.
type DiscordWebhookConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Username   string `yaml:"username"`
}

// EmailWebhookConfig configures an optional SMTP channel, activated only
// when both SMTPHost and at least one recipient are set.
type EmailWebhookConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// NotificationsConfig holds the optional external webhook channels layered
// on top of the always-on toast/terminal/banner notifications.
type NotificationsConfig struct {
	Slack   SlackWebhookConfig   `yaml:"slack"`
	Discord DiscordWebhookConfig `yaml:"discord"`
	Email   EmailWebhookConfig   `yaml:"email"`
}

// ProfileConfig selects the User Profile Store's on-disk backend.
type ProfileConfig struct {
	Backend string `yaml:"backend"`
}

// Config is the fully-resolved, defaulted application configuration.
type Config struct {
	Browser        BrowserConfig       `yaml:"browser"`
	Platform       PlatformConfig      `yaml:"platform"`
	System         SystemConfig        `yaml:"system"`
	Telemetry      TelemetryConfig     `yaml:"telemetry"`
	Notifications  NotificationsConfig `yaml:"notifications"`
	Profile        ProfileConfig       `yaml:"profile"`
	CaptchaHandler string              `yaml:"captcha_handler"`
}

// Warning is a non-fatal problem found while loading config: an unknown
// value was replaced with a default, or an out-of-range value was
// clamped.
type Warning struct {
	Field   string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}

var validBrowserTypes = map[string]bool{
	"edge": true, "chrome": true, "firefox": true, "chromium": true, "webkit": true,
}

var validLogLevels = map[string]bool{"INFO": true, "DEBUG": true}
var validCaptchaHandlers = map[string]bool{"manual": true, "external": true}
var validProfileBackends = map[string]bool{"json": true, "csv": true}

// Load reads and validates the YAML file at path. A missing file is not
// fatal by itself — it is reported as a Warning and defaults apply
// throughout — but a browser type that is neither present in the file nor
// resolvable from a default is fatal, as is an external CAPTCHA handler
// with no API key in the environment.
func Load(path string) (*Config, []Warning, error) {
	var warnings []Warning

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			warnings = append(warnings, Warning{Field: "config", Message: fmt.Sprintf("%s not found, using defaults", path)})
		} else {
			return nil, nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, nil, fmt.Errorf("config: parsing %s: %w: %w", path, types.ErrConfigInvalid, err)
	}

	warnings = append(warnings, applyDefaults(cfg)...)

	if cfg.Browser.Type == "" {
		return nil, warnings, fmt.Errorf("config: browser.type is required: %w", types.ErrConfigInvalid)
	}
	if !validBrowserTypes[cfg.Browser.Type] {
		return nil, warnings, fmt.Errorf("config: browser.type %q is not one of edge/chrome/firefox/chromium/webkit: %w", cfg.Browser.Type, types.ErrConfigInvalid)
	}

	if cfg.CaptchaHandler == "external" && os.Getenv("CAPTCHA_API_KEY") == "" {
		return nil, warnings, fmt.Errorf("config: captcha_handler=external requires CAPTCHA_API_KEY in the environment: %w", types.ErrConfigInvalid)
	}

	return cfg, warnings, nil
}

func defaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			CDPPort:  9222,
			Viewport: Viewport{Width: 1280, Height: 720},
			DataDir:  "./data",
		},
		Platform: PlatformConfig{
			LinkedIn: LinkedInConfig{
				DefaultTimeout: 10000,
				MinDelay:       1.0,
				MaxDelay:       3.0,
				MaxRetries:     3,
			},
		},
		System: SystemConfig{
			LogLevel:   "INFO",
			DataDir:    "./data",
			MaxRetries: 3,
			RetryDelay: 1.0,
		},
		Telemetry: TelemetryConfig{
			Enabled:     true,
			StoragePath: "./data/telemetry",
		},
		Profile: ProfileConfig{
			Backend: "json",
		},
		CaptchaHandler: "manual",
	}
}

// applyDefaults fills in zero-valued fields the YAML file left blank and
// clamps values outside their valid set, returning one Warning per
// correction made.
func applyDefaults(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Browser.CDPPort == 0 {
		cfg.Browser.CDPPort = 9222
	}
	if cfg.Browser.Viewport == (Viewport{}) {
		cfg.Browser.Viewport = Viewport{Width: 1280, Height: 720}
	}
	if cfg.Browser.DataDir == "" {
		cfg.Browser.DataDir = "./data"
	}

	if cfg.Platform.LinkedIn.DefaultTimeout == 0 {
		cfg.Platform.LinkedIn.DefaultTimeout = 10000
	}
	if cfg.Platform.LinkedIn.MinDelay == 0 {
		cfg.Platform.LinkedIn.MinDelay = 1.0
	}
	if cfg.Platform.LinkedIn.MaxDelay == 0 {
		cfg.Platform.LinkedIn.MaxDelay = 3.0
	}
	if cfg.Platform.LinkedIn.MaxDelay < cfg.Platform.LinkedIn.MinDelay {
		warnings = append(warnings, Warning{Field: "platform.linkedin.max_delay", Message: "max_delay below min_delay, clamped to min_delay"})
		cfg.Platform.LinkedIn.MaxDelay = cfg.Platform.LinkedIn.MinDelay
	}
	if cfg.Platform.LinkedIn.MaxRetries == 0 {
		cfg.Platform.LinkedIn.MaxRetries = 3
	}

	if cfg.System.LogLevel == "" {
		cfg.System.LogLevel = "INFO"
	} else if !validLogLevels[cfg.System.LogLevel] {
		warnings = append(warnings, Warning{Field: "system.log_level", Message: fmt.Sprintf("unknown level %q, defaulting to INFO", cfg.System.LogLevel)})
		cfg.System.LogLevel = "INFO"
	}
	if cfg.System.DataDir == "" {
		cfg.System.DataDir = "./data"
	}
	if cfg.System.MaxRetries == 0 {
		cfg.System.MaxRetries = 3
	}
	if cfg.System.RetryDelay == 0 {
		cfg.System.RetryDelay = 1.0
	}

	if cfg.Telemetry.StoragePath == "" {
		cfg.Telemetry.StoragePath = "./data/telemetry"
	}

	if cfg.CaptchaHandler == "" {
		cfg.CaptchaHandler = "manual"
	} else if !validCaptchaHandlers[cfg.CaptchaHandler] {
		warnings = append(warnings, Warning{Field: "captcha_handler", Message: fmt.Sprintf("unknown handler %q, defaulting to manual", cfg.CaptchaHandler)})
		cfg.CaptchaHandler = "manual"
	}

	if cfg.Profile.Backend == "" {
		cfg.Profile.Backend = "json"
	} else if !validProfileBackends[cfg.Profile.Backend] {
		warnings = append(warnings, Warning{Field: "profile.backend", Message: fmt.Sprintf("unknown backend %q, defaulting to json", cfg.Profile.Backend)})
		cfg.Profile.Backend = "json"
	}

	return warnings
}

// DataSubdirs returns the persisted-state subdirectories this module
// expects to find (or create) under System.DataDir.
func (c *Config) DataSubdirs() []string {
	return []string{"logs", "cookies", "screenshots", "profiles", "telemetry/events", "telemetry/metrics"}
}
