package transcode

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gmma/gmma/internal/ladder"
)

// Runner executes one ffmpeg invocation and blocks until it exits.
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

type FFmpeg struct {
	logger zerolog.Logger
	binary string
}

func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}

	return &FFmpeg{
		logger: log.With().Str("module", "transcode").Str("submodule", "ffmpeg").Logger(),
		binary: binary,
	}
}

func (f *FFmpeg) Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.binary, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	wg := sync.WaitGroup{}
	wg.Add(1)

	// ffmpeg reports on stderr
	go func() {
		defer wg.Done()

		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			f.logger.Warn().Msg(scanner.Text())
		}
	}()

	if err := cmd.Start(); err != nil {
		return err
	}

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s exited: %w", f.binary, err)
	}

	return nil
}

// EncodeArgs builds the ffmpeg invocation for one rendition encode. For
// segmented specs output is the rendition directory, for flat ones the
// media file itself.
func EncodeArgs(spec ladder.Spec, input string, output string) []string {
	args := []string{
		"-y",
		"-loglevel", "warning",
		"-i", input,
	}

	if spec.VideoCodec != "" {
		args = append(args,
			"-c:v", spec.VideoCodec,
			"-preset", "fast",
			"-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
			"-g", "48",
			"-sc_threshold", "0",
		)
	} else {
		args = append(args, "-vn")
	}

	args = append(args,
		"-c:a", spec.AudioCodec,
		"-b:a", fmt.Sprintf("%dk", spec.AudioBitrate),
	)

	if spec.Segmented {
		args = append(args,
			"-hls_time", strconv.Itoa(spec.SegmentSeconds),
			"-hls_playlist_type", "vod",
			"-hls_segment_filename", filepath.Join(output, "index%d.ts"),
			"-f", "hls",
			filepath.Join(output, "index.m3u8"),
		)
	} else {
		args = append(args, "-f", spec.Ext, output)
	}

	return args
}

// MuxArgs builds a lossless remux of separately downloaded video and audio
// streams into a single master container.
func MuxArgs(videoPath string, audioPath string, output string) []string {
	return []string{
		"-y",
		"-loglevel", "warning",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "copy",
		"-movflags", "+faststart",
		// output lands on a .tmp path, the container must be explicit
		"-f", "mp4",
		output,
	}
}

// ExtractAudioArgs builds the normalization of a downloaded container's
// audio track into an mp3 master.
func ExtractAudioArgs(input string, output string) []string {
	return []string{
		"-y",
		"-loglevel", "warning",
		"-i", input,
		"-vn",
		"-c:a", "libmp3lame",
		"-f", "mp3",
		output,
	}
}
