package trim

import (
	"fmt"
	"strings"

	"github.com/silencecut/silencecut-api/internal/store"
)

// filterGraph builds the two-stage silence-removal filter. The first
// silenceremove pass trims leading silence above the threshold; the
// aformat stage pins the sample format so level detection is stable; the
// second pass trims internal and trailing silence runs of at least the
// minimum duration. Both passes use peak-level detection.
func filterGraph(thresholdDB, minSilenceMS int) string {
	stopDuration := float64(minSilenceMS) / 1000.0
	return strings.Join([]string{
		fmt.Sprintf("silenceremove=start_periods=1:start_duration=0:start_threshold=%ddB:detection=peak", thresholdDB),
		"aformat=sample_fmts=s16:sample_rates=44100",
		fmt.Sprintf("silenceremove=start_periods=0:start_duration=0:stop_periods=-1:stop_duration=%g:stop_threshold=%ddB:detection=peak", stopDuration, thresholdDB),
	}, ",")
}

// codecArgs returns the ffmpeg codec flags for the resolved output format.
func codecArgs(format store.OutputFormat) []string {
	switch format {
	case store.FormatWAV:
		return []string{"-codec:a", "pcm_s16le"}
	case store.FormatFLAC:
		return []string{"-codec:a", "flac"}
	default:
		return []string{"-codec:a", "libmp3lame", "-b:a", "192k"}
	}
}

// outputPath derives the processed file path from the input path and the
// resolved format, e.g. "a1b2-talk.mp3" -> "a1b2-talk_processed.mp3".
func outputPath(inputPath string, format store.OutputFormat) string {
	base := inputPath
	if i := strings.LastIndex(base, "."); i > strings.LastIndexAny(base, "/\\") {
		base = base[:i]
	}
	return fmt.Sprintf("%s_processed.%s", base, format)
}

// extractedAudioPath derives the temporary path for the lossless audio
// track demuxed from a video source.
func extractedAudioPath(inputPath string) string {
	base := inputPath
	if i := strings.LastIndex(base, "."); i > strings.LastIndexAny(base, "/\\") {
		base = base[:i]
	}
	return base + "_audio.wav"
}
