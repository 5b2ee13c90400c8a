package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validatePlatform(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.MaxUploadGiB <= 0 {
		return errors.New("server.max_upload_gib must be positive")
	}
	if _, err := time.LoadLocation(c.Server.TimeZone); err != nil {
		return fmt.Errorf("server.time_zone: unknown zone %q", c.Server.TimeZone)
	}
	if c.Server.LegacyGraceDate != "" {
		if _, err := time.Parse("2006-01-02", c.Server.LegacyGraceDate); err != nil {
			return fmt.Errorf("server.legacy_grace_date must be YYYY-MM-DD: %w", err)
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/aircheck/config.toml"
		}
		return fmt.Errorf("store.url is required. Edit %s (create with 'aircheck config init')", defaultPath)
	}
	if c.Store.Token == "" {
		return errors.New("store.token is required. Set AIRCHECK_STORE_TOKEN or store.token")
	}
	for _, table := range []struct {
		name string
		id   int64
	}{
		{"store.person_table", c.Store.PersonTable},
		{"store.show_table", c.Store.ShowTable},
		{"store.upload_table", c.Store.UploadTable},
	} {
		if table.id <= 0 {
			return fmt.Errorf("%s must be set", table.name)
		}
	}
	return nil
}

func (c *Config) validatePlatform() error {
	if c.Platform.DomainID == "" {
		return errors.New("platform.domain_id is required")
	}
	if c.Platform.APISecret == "" {
		return errors.New("platform.api_secret is required. Set AIRCHECK_PLATFORM_SECRET or platform.api_secret")
	}
	if c.Platform.SessionID == "" {
		return errors.New("platform.session_id is required. Set AIRCHECK_PLATFORM_SESSION or platform.session_id")
	}
	return nil
}

func (c *Config) validateAudio() error {
	if strings.TrimSpace(c.Audio.NoiseTolerance) == "" {
		return errors.New("audio.noise_tolerance must be set")
	}
	if c.Audio.SilenceSeconds <= 0 {
		return errors.New("audio.silence_seconds must be positive")
	}
	if c.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if strings.TrimSpace(c.Audio.BitRate) == "" {
		return errors.New("audio.bit_rate must be set")
	}
	if c.Audio.CropAllowance < 0 {
		return errors.New("audio.crop_allowance must not be negative")
	}
	if c.Audio.WaveformWidth <= 0 || c.Audio.WaveformHeight <= 0 {
		return errors.New("audio.waveform dimensions must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
