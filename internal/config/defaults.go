package config

const (
	defaultBind               = "127.0.0.1:8321"
	defaultBaseURL            = "http://localhost:8321"
	defaultTempDir            = "~/.local/share/aircheck/tmp"
	defaultLogDir             = "~/.local/share/aircheck/logs"
	defaultMaxUploadGiB       = 2
	defaultTimeZone           = "Europe/Zurich"
	defaultPlatformBaseURL    = "https://api.nexx.cloud/v3.1"
	defaultNoiseTolerance     = "-45dB"
	defaultSilenceSeconds     = 30
	defaultBitRate            = "192k"
	defaultSampleRate         = 44100
	defaultCropAllowance      = 1.5
	defaultWaveformWidth      = 600
	defaultWaveformHeight     = 252
	defaultWaveformColor      = "#3399cc"
	defaultNotifyTimeout      = 10
	defaultSMTPPort           = 465
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultMaintenanceMessage = "Uploads are disabled during backend maintenance. Please try again later."
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			BaseURL:            defaultBaseURL,
			Bind:               defaultBind,
			MaxUploadGiB:       defaultMaxUploadGiB,
			TempDir:            defaultTempDir,
			TimeZone:           defaultTimeZone,
			MaintenanceMessage: defaultMaintenanceMessage,
		},
		Platform: Platform{
			BaseURL: defaultPlatformBaseURL,
		},
		Audio: Audio{
			FFmpegBinary:   "ffmpeg",
			FFprobeBinary:  "ffprobe",
			NoiseTolerance: defaultNoiseTolerance,
			SilenceSeconds: defaultSilenceSeconds,
			BitRate:        defaultBitRate,
			SampleRate:     defaultSampleRate,
			CropAllowance:  defaultCropAllowance,
			WaveformWidth:  defaultWaveformWidth,
			WaveformHeight: defaultWaveformHeight,
			WaveformColor:  defaultWaveformColor,
		},
		Notify: Notify{
			RequestTimeout: defaultNotifyTimeout,
		},
		Mail: Mail{
			Port: defaultSMTPPort,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			LogDir: defaultLogDir,
		},
	}
}
