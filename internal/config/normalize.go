package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// applyEnvOverrides lets secrets live in the environment instead of the
// config file. Environment values win over file values.
func (c *Config) applyEnvOverrides() {
	overrideString(&c.Store.Token, "AIRCHECK_STORE_TOKEN")
	overrideString(&c.Platform.APISecret, "AIRCHECK_PLATFORM_SECRET")
	overrideString(&c.Platform.SessionID, "AIRCHECK_PLATFORM_SESSION")
	overrideString(&c.Server.WebhookSecret, "AIRCHECK_WEBHOOK_SECRET")
	overrideString(&c.Mail.Password, "AIRCHECK_SMTP_PASSWORD")
}

func overrideString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func (c *Config) normalize() error {
	var err error
	if c.Server.TempDir, err = expandPath(c.Server.TempDir); err != nil {
		return fmt.Errorf("server.temp_dir: %w", err)
	}
	if c.Logging.LogDir, err = expandPath(c.Logging.LogDir); err != nil {
		return fmt.Errorf("logging.log_dir: %w", err)
	}

	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	c.Server.TimeZone = strings.TrimSpace(c.Server.TimeZone)
	if c.Server.TimeZone == "" {
		c.Server.TimeZone = defaultTimeZone
	}

	c.Store.URL = strings.TrimRight(strings.TrimSpace(c.Store.URL), "/")
	c.Store.Token = strings.TrimSpace(c.Store.Token)

	c.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(c.Platform.BaseURL), "/")
	if c.Platform.BaseURL == "" {
		c.Platform.BaseURL = defaultPlatformBaseURL
	}
	c.Platform.DomainID = strings.TrimSpace(c.Platform.DomainID)
	c.Platform.APISecret = strings.TrimSpace(c.Platform.APISecret)
	c.Platform.SessionID = strings.TrimSpace(c.Platform.SessionID)

	c.Audio.FFmpegBinary = strings.TrimSpace(c.Audio.FFmpegBinary)
	if c.Audio.FFmpegBinary == "" {
		c.Audio.FFmpegBinary = "ffmpeg"
	}
	c.Audio.FFprobeBinary = strings.TrimSpace(c.Audio.FFprobeBinary)
	if c.Audio.FFprobeBinary == "" {
		c.Audio.FFprobeBinary = "ffprobe"
	}

	c.Notify.NtfyURL = strings.TrimRight(strings.TrimSpace(c.Notify.NtfyURL), "/")
	c.Notify.NtfyTopic = strings.TrimSpace(c.Notify.NtfyTopic)
	if c.Notify.RequestTimeout <= 0 {
		c.Notify.RequestTimeout = defaultNotifyTimeout
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// ExpandPath resolves ~ and relativity into an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
