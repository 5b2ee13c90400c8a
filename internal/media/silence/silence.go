// Package silence runs ffmpeg's silencedetect filter over an audio file and
// classifies the detected quiet intervals.
//
// Classification is relative to the file's total duration with a two second
// tolerance absorbing encoder and probe rounding: an interval starting at
// zero is leading silence, one ending within tolerance of the total is
// trailing silence, and one spanning within tolerance of the total means the
// whole file is silent. Everything else is an intermediate silence that needs
// manual review.
package silence

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"aircheck/internal/media/ffprobe"
	"aircheck/internal/services"
)

// classifyTolerance absorbs rounding differences between the detector's
// timestamps and the probed total duration.
const classifyTolerance = 2.0

// Part is one detected silence interval, all values in seconds.
type Part struct {
	Start    float64
	End      float64
	Duration float64
}

// AtStart reports whether the silence sits at the very start of the file.
func (p Part) AtStart() bool {
	return p.Start == 0
}

// AtEnd reports whether the silence reaches the end of a file of the given
// total duration.
func (p Part) AtEnd(total float64) bool {
	return math.Abs(math.Round(total)-math.Round(p.End)) < classifyTolerance
}

// WholeFile reports whether the silence spans the entire file.
func (p Part) WholeFile(total float64) bool {
	return math.Abs(math.Round(total)-math.Round(p.Duration)) < classifyTolerance
}

func (p Part) String() string {
	return fmt.Sprintf("start: %s, end: %s, duration: %s",
		formatSeconds(p.Start), formatSeconds(p.End), formatSeconds(p.Duration))
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// Report holds the detected silence intervals of one file together with the
// file's probed total duration.
type Report struct {
	Parts         []Part
	TotalDuration float64
}

// StartSilence returns the leading silence, if one was detected.
func (r Report) StartSilence() (Part, bool) {
	for _, part := range r.Parts {
		if part.AtStart() {
			return part, true
		}
	}
	return Part{}, false
}

// EndSilence returns the trailing silence, if one was detected.
func (r Report) EndSilence() (Part, bool) {
	for _, part := range r.Parts {
		if part.AtEnd(r.TotalDuration) {
			return part, true
		}
	}
	return Part{}, false
}

// Intermediate returns all silences that are neither leading, trailing, nor
// whole-file, in detection order. These are never auto-corrected.
func (r Report) Intermediate() []Part {
	var parts []Part
	for _, part := range r.Parts {
		if part.AtStart() || part.AtEnd(r.TotalDuration) || part.WholeFile(r.TotalDuration) {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

// WholeFileIsSilence reports whether any interval spans the entire file.
func (r Report) WholeFileIsSilence() bool {
	for _, part := range r.Parts {
		if part.WholeFile(r.TotalDuration) {
			return true
		}
	}
	return false
}

// Log derives the human-readable silence summary persisted on the upload
// row. A fully silent file yields exactly one line; otherwise one line per
// leading, trailing, and intermediate silence. An empty string means nothing
// was found.
func (r Report) Log() string {
	if r.WholeFileIsSilence() {
		return "- Whole file appears to be silence"
	}
	var lines []string
	if part, ok := r.StartSilence(); ok {
		lines = append(lines, fmt.Sprintf("- Silence found and removed at the start (%s)", part))
	}
	if part, ok := r.EndSilence(); ok {
		lines = append(lines, fmt.Sprintf("- Silence found and removed at the end (%s)", part))
	}
	for _, part := range r.Intermediate() {
		lines = append(lines, fmt.Sprintf("- Intermediate silence found, this has to be resolved manually (%s)", part))
	}
	return strings.Join(lines, "\n")
}

// Detector runs the silencedetect pass. Thresholds come from configuration.
type Detector struct {
	FFmpegBinary   string
	FFprobeBinary  string
	NoiseTolerance string
	MinDuration    int
}

// Detect runs the detection pass and the duration probe over one file.
func (d Detector) Detect(ctx context.Context, path string) (Report, error) {
	binary := strings.TrimSpace(d.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	filter := fmt.Sprintf("silencedetect=noise=%s:d=%d", d.NoiseTolerance, d.MinDuration)
	cmd := exec.CommandContext(ctx, binary,
		"-hide_banner", "-nostats",
		"-i", path,
		"-af", filter,
		"-f", "null", "-")
	// silencedetect reports on stderr.
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Report{}, services.Wrap(services.ErrExternalTool, "silence", "detect",
			fmt.Sprintf("ffmpeg silencedetect failed for %s: %s", path, strings.TrimSpace(string(output))), err)
	}

	parts, err := Parse(strings.Split(string(output), "\n"))
	if err != nil {
		return Report{}, err
	}

	probe, err := ffprobe.Inspect(ctx, d.FFprobeBinary, path)
	if err != nil {
		return Report{}, services.Wrap(services.ErrExternalTool, "silence", "probe", path, err)
	}
	return Report{Parts: parts, TotalDuration: probe.DurationSeconds()}, nil
}

var (
	silenceStartRe = regexp.MustCompile(` silence_start: ([0-9]+(\.[0-9]*)?)`)
	silenceEndRe   = regexp.MustCompile(` silence_end: ([0-9]+(\.[0-9]*)?)`)
)

// Parse extracts silence intervals from the detector's log lines. A start
// marker opens an interval; the next end marker closes the most recently
// opened one. An end marker with no open interval is an error since the
// detector guarantees interleaved, balanced output.
func Parse(lines []string) ([]Part, error) {
	var parts []Part
	open := -1
	for _, line := range lines {
		if match := silenceStartRe.FindStringSubmatch(line); match != nil {
			start, err := strconv.ParseFloat(match[1], 64)
			if err != nil {
				return nil, fmt.Errorf("silence: parse start marker %q: %w", line, err)
			}
			parts = append(parts, Part{Start: start, End: -1, Duration: -1})
			open = len(parts) - 1
		}
		if match := silenceEndRe.FindStringSubmatch(line); match != nil {
			if open < 0 {
				return nil, fmt.Errorf("silence: end marker without open interval in %q", line)
			}
			end, err := strconv.ParseFloat(match[1], 64)
			if err != nil {
				return nil, fmt.Errorf("silence: parse end marker %q: %w", line, err)
			}
			parts[open].End = end
			parts[open].Duration = end - parts[open].Start
			open = -1
		}
	}
	return parts, nil
}
