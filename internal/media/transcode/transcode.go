// Package transcode produces the broadcast-ready rendition of an uploaded
// audio file and renders its waveform image, both via ffmpeg.
package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"aircheck/internal/media/silence"
	"aircheck/internal/services"
)

// Trim holds the computed cut points for an optimization run. A zero side
// means no cut on that side.
type Trim struct {
	Start    float64
	End      float64
	HasStart bool
	HasEnd   bool
}

// ComputeTrim derives the cut points from a silence report. The crop
// allowance is the number of seconds of silence deliberately left at each
// trim point so the cut never sounds abrupt: leading silence is cut to end
// at (silence end - allowance), trailing silence to start at
// (silence start + allowance). A leading silence shorter than the allowance
// is left alone.
func ComputeTrim(report silence.Report, cropAllowance float64) Trim {
	var trim Trim
	if part, ok := report.StartSilence(); ok && part.End > cropAllowance {
		trim.Start = part.End - cropAllowance
		trim.HasStart = true
	}
	if part, ok := report.EndSilence(); ok {
		trim.End = part.Start + cropAllowance
		trim.HasEnd = true
	}
	return trim
}

// Tags is the container metadata stamped onto the optimized file.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Track  string
	Date   string
}

// Optimizer re-encodes an upload for air: trim silence, normalize loudness,
// re-encode to the configured bit and sample rate, stamp metadata.
type Optimizer struct {
	FFmpegBinary  string
	BitRate       string
	SampleRate    int
	CropAllowance float64
	Logger        *slog.Logger
}

// Run transcodes input to output. A failing ffmpeg run is fatal and
// propagates; no partial output is accepted.
func (o Optimizer) Run(ctx context.Context, input, output string, report silence.Report, tags Tags) error {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	trim := ComputeTrim(report, o.CropAllowance)

	args := []string{"-hide_banner", "-y", "-i", input}
	if trim.HasStart {
		args = append(args, "-ss", formatSeconds(trim.Start))
	}
	if trim.HasEnd {
		args = append(args, "-to", formatSeconds(trim.End))
	}
	args = append(args,
		"-af", "loudnorm",
		"-b:a", o.BitRate,
		"-ar", strconv.Itoa(o.SampleRate),
	)
	for key, value := range map[string]string{
		"title":  tags.Title,
		"artist": tags.Artist,
		"album":  tags.Album,
		"track":  tags.Track,
		"date":   tags.Date,
	} {
		if value != "" {
			args = append(args, "-metadata", key+"="+value)
		}
	}
	args = append(args, output)

	logger.Debug("optimizing audio",
		slog.String("input", input),
		slog.Bool("trim_start", trim.HasStart),
		slog.Bool("trim_end", trim.HasEnd))

	binary := strings.TrimSpace(o.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "optimize",
			fmt.Sprintf("ffmpeg failed for %s: %s", input, strings.TrimSpace(string(out))), err)
	}
	return nil
}

// Waveform renders a fixed-size amplitude image of an audio file.
type Waveform struct {
	FFmpegBinary string
	Gain         int
	Width        int
	Height       int
	Color        string
}

// Render draws the waveform of input into the image file at output.
func (w Waveform) Render(ctx context.Context, input, output string) error {
	filter := fmt.Sprintf(
		"aformat=channel_layouts=mono,compand=gain=%d,showwavespic=s=%dx%d:colors=%s",
		w.Gain, w.Width, w.Height, w.Color)

	binary := strings.TrimSpace(w.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary,
		"-hide_banner", "-y",
		"-i", input,
		"-filter_complex", filter,
		"-frames:v", "1",
		output)
	if out, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "waveform",
			fmt.Sprintf("ffmpeg failed for %s: %s", input, strings.TrimSpace(string(out))), err)
	}
	return nil
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
