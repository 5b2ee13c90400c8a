package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"aircheck/internal/baserow"
	"aircheck/internal/catalog"
	"aircheck/internal/config"
	"aircheck/internal/export"
	"aircheck/internal/logging"
	"aircheck/internal/media/ffprobe"
	"aircheck/internal/media/silence"
	"aircheck/internal/media/transcode"
	"aircheck/internal/omnia"
	"aircheck/internal/worker"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) buildLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) buildStore(logger *slog.Logger) (*catalog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client := baserow.NewClient(cfg.Store.URL, cfg.Store.Token, nil, logger)
	tables := catalog.Tables{
		Person: cfg.Store.PersonTable,
		Show:   cfg.Store.ShowTable,
		Upload: cfg.Store.UploadTable,
	}
	return catalog.NewStore(client, tables, logger), nil
}

func (c *commandContext) buildSaga(logger *slog.Logger) (*export.Saga, *catalog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := c.buildStore(logger)
	if err != nil {
		return nil, nil, err
	}
	platform := omnia.NewClient(
		cfg.Platform.BaseURL, cfg.Platform.DomainID,
		cfg.Platform.APISecret, cfg.Platform.SessionID, nil, logger)
	return export.New(store, platform, cfg.Platform.LinkAllShowIDs, logger), store, nil
}

func (c *commandContext) buildAudioTools(logger *slog.Logger) (worker.AudioTools, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return worker.AudioTools{}, err
	}
	probeBinary := cfg.Audio.FFprobeBinary
	return worker.AudioTools{
		Detector: silence.Detector{
			FFmpegBinary:   cfg.Audio.FFmpegBinary,
			FFprobeBinary:  probeBinary,
			NoiseTolerance: cfg.Audio.NoiseTolerance,
			MinDuration:    cfg.Audio.SilenceSeconds,
		},
		Optimize: transcode.Optimizer{
			FFmpegBinary:  cfg.Audio.FFmpegBinary,
			BitRate:       cfg.Audio.BitRate,
			SampleRate:    cfg.Audio.SampleRate,
			CropAllowance: cfg.Audio.CropAllowance,
			Logger:        logger,
		},
		Waveform: transcode.Waveform{
			FFmpegBinary: cfg.Audio.FFmpegBinary,
			Gain:         cfg.Audio.WaveformGain,
			Width:        cfg.Audio.WaveformWidth,
			Height:       cfg.Audio.WaveformHeight,
			Color:        cfg.Audio.WaveformColor,
		},
		Duration: func(ctx context.Context, path string) (float64, error) {
			result, err := ffprobe.Inspect(ctx, probeBinary, path)
			if err != nil {
				return 0, err
			}
			return result.DurationSeconds(), nil
		},
	}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
