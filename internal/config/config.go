package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the HTTP surface and general runtime settings.
type Server struct {
	BaseURL            string `toml:"base_url"`
	Bind               string `toml:"bind"`
	WebhookSecret      string `toml:"webhook_secret"`
	MaxUploadGiB       int    `toml:"max_upload_gib"`
	TempDir            string `toml:"temp_dir"`
	TimeZone           string `toml:"time_zone"`
	DevMode            bool   `toml:"dev_mode"`
	MaintenanceMode    bool   `toml:"maintenance_mode"`
	MaintenanceMessage string `toml:"maintenance_message"`
	LegacyGraceDate    string `toml:"legacy_grace_date"`
}

// Store contains configuration for the tabular store acting as the
// system-of-record.
type Store struct {
	URL         string `toml:"url"`
	Token       string `toml:"token"`
	PersonTable int64  `toml:"person_table"`
	ShowTable   int64  `toml:"show_table"`
	UploadTable int64  `toml:"upload_table"`
}

// Platform contains credentials for the external distribution platform.
type Platform struct {
	BaseURL        string  `toml:"base_url"`
	DomainID       string  `toml:"domain_id"`
	APISecret      string  `toml:"api_secret"`
	SessionID      string  `toml:"session_id"`
	LinkAllShowIDs []int64 `toml:"link_all_show_ids"`
}

// Audio contains the analysis and optimization parameters.
type Audio struct {
	FFmpegBinary   string  `toml:"ffmpeg_binary"`
	FFprobeBinary  string  `toml:"ffprobe_binary"`
	NoiseTolerance string  `toml:"noise_tolerance"`
	SilenceSeconds int     `toml:"silence_seconds"`
	BitRate        string  `toml:"bit_rate"`
	SampleRate     int     `toml:"sample_rate"`
	CropAllowance  float64 `toml:"crop_allowance"`
	WaveformWidth  int     `toml:"waveform_width"`
	WaveformHeight int     `toml:"waveform_height"`
	WaveformColor  string  `toml:"waveform_color"`
	WaveformGain   int     `toml:"waveform_gain"`
}

// Notify contains configuration for ntfy push notifications.
type Notify struct {
	NtfyURL        string `toml:"ntfy_url"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Mail contains SMTP settings for on-upload notification mails.
type Mail struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SenderAddress string `toml:"sender_address"`
	SenderName    string `toml:"sender_name"`
	OnUploadMail  string `toml:"on_upload_mail"`
	ContactMail   string `toml:"contact_mail"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	LogDir string `toml:"log_dir"`
}

// Config encapsulates all configuration values for aircheck.
type Config struct {
	Server   Server   `toml:"server"`
	Store    Store    `toml:"store"`
	Platform Platform `toml:"platform"`
	Audio    Audio    `toml:"audio"`
	Notify   Notify   `toml:"notify"`
	Mail     Mail     `toml:"mail"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/aircheck/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. Secrets may be
// supplied through the environment (optionally via a .env file) and take
// precedence over file values. The returned config has all path fields
// expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	// Missing .env is fine; explicit environment still applies.
	_ = godotenv.Load()
	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("aircheck.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the serve command needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Server.TempDir, c.Logging.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Location resolves the configured timezone. Upload form datetimes are
// interpreted in this zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Server.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("server.time_zone: %w", err)
	}
	return loc, nil
}

// MaxUploadBytes returns the request body cap for the upload endpoint.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadGiB) * 1024 * 1024 * 1024
}
