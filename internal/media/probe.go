package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"media-prep/internal/logging"

	"github.com/samber/lo"
)

// ErrNoStream is returned when a source has no stream of the probed kind.
var ErrNoStream = errors.New("no matching stream")

// Prober reads duration, tags and preview frames from audio and video files.
// Exactly one of path and content is used: content wins when non-empty.
type Prober interface {
	ProbeSong(ctx context.Context, path string, content []byte) (*Song, error)
	ProbeVideo(ctx context.Context, path string, content []byte) (*Video, error)
}

// FFProbe implements Prober with the ffprobe and ffmpeg binaries.
type FFProbe struct {
	FFProbePath string
	FFmpegPath  string
	Timeout     time.Duration
}

// NewFFProbe returns a prober that resolves ffprobe and ffmpeg from PATH.
func NewFFProbe(timeout time.Duration) *FFProbe {
	return &FFProbe{FFProbePath: "ffprobe", FFmpegPath: "ffmpeg", Timeout: timeout}
}

// Available reports whether both binaries can be found.
func (p *FFProbe) Available() bool {
	if _, err := exec.LookPath(p.FFProbePath); err != nil {
		return false
	}
	_, err := exec.LookPath(p.FFmpegPath)
	return err == nil
}

type probeStream struct {
	CodecType   string `json:"codec_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Disposition struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		FormatName string            `json:"format_name"`
		Duration   string            `json:"duration"`
		Tags       map[string]string `json:"tags"`
	} `json:"format"`
}

func (o *probeOutput) duration() int {
	seconds, err := strconv.ParseFloat(o.Format.Duration, 64)
	if err != nil || seconds < 0 {
		return -1
	}
	return int(seconds)
}

func (o *probeOutput) tag(name string) string {
	for k, v := range o.Format.Tags {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (o *probeOutput) hasStream(kind string, attached bool) bool {
	return lo.ContainsBy(o.Streams, func(s probeStream) bool {
		return s.CodecType == kind && (s.Disposition.AttachedPic == 1) == attached
	})
}

// ProbeSong implements Prober.
func (p *FFProbe) ProbeSong(ctx context.Context, path string, content []byte) (*Song, error) {
	input, cleanup, err := p.input(path, content)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	out, err := p.probe(ctx, input)
	if err != nil {
		return nil, err
	}
	if !out.hasStream("audio", false) {
		return nil, ErrNoStream
	}

	song := &Song{
		Duration:  out.duration(),
		Title:     out.tag("title"),
		Performer: out.tag("artist"),
	}
	if out.hasStream("video", true) {
		cover, err := p.frame(ctx, input)
		if err != nil {
			logging.Debug("No cover extracted for %s: %v", input, err)
		} else {
			song.Cover = cover
		}
	}
	return song, nil
}

// ProbeVideo implements Prober.
func (p *FFProbe) ProbeVideo(ctx context.Context, path string, content []byte) (*Video, error) {
	input, cleanup, err := p.input(path, content)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	out, err := p.probe(ctx, input)
	if err != nil {
		return nil, err
	}
	if !out.hasStream("video", false) {
		return nil, ErrNoStream
	}

	mp4 := strings.Contains(out.Format.FormatName, "mp4")
	video := &Video{
		Duration: out.duration(),
		IsGifv:   mp4 && !out.hasStream("audio", false),
	}
	if mp4 {
		streaming, err := moovBeforeMdatFile(input)
		if err != nil {
			logging.Debug("Could not scan %s for streaming layout: %v", input, err)
		}
		video.SupportsStreaming = streaming
	}

	frame, err := p.frame(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to extract first frame: %w", err)
	}
	video.Thumbnail = frame
	return video, nil
}

// input returns a file path ffprobe can seek in, spilling content to a
// temporary file when needed.
func (p *FFProbe) input(path string, content []byte) (string, func(), error) {
	if len(content) == 0 {
		if path == "" {
			return "", nil, fmt.Errorf("no probe source")
		}
		return path, func() {}, nil
	}

	f, err := os.CreateTemp("", "media-prep-probe-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create probe file: %w", err)
	}
	name := f.Name()
	cleanup := func() {
		if err := os.Remove(name); err != nil {
			logging.Warn("failed to remove probe file %s: %v", name, err)
		}
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write probe file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close probe file: %w", err)
	}
	return name, cleanup, nil
}

func (p *FFProbe) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.Timeout)
}

func (p *FFProbe) probe(ctx context.Context, input string) (*probeOutput, error) {
	cmd := exec.CommandContext(ctx, p.FFProbePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		input,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %v, stderr: %s", err, stderr.String())
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &out, nil
}

// frame decodes the first video frame (or attached cover) as an image.
func (p *FFProbe) frame(ctx context.Context, input string) (image.Image, error) {
	cmd := exec.CommandContext(ctx, p.FFmpegPath,
		"-v", "error",
		"-i", input,
		"-an",
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", input)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

func moovBeforeMdatFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close %s: %v", path, err)
		}
	}()
	return moovBeforeMdat(f)
}

// moovBeforeMdat walks the top-level MP4 boxes and reports whether the
// index (moov) precedes the media data (mdat), which allows playback to
// start before the download completes.
func moovBeforeMdat(r io.ReaderAt) (bool, error) {
	var header [16]byte
	var offset int64
	for {
		if _, err := r.ReadAt(header[:8], offset); err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
		size := int64(binary.BigEndian.Uint32(header[0:4]))
		switch string(header[4:8]) {
		case "moov":
			return true, nil
		case "mdat":
			return false, nil
		}

		switch size {
		case 0:
			// box extends to end of file
			return false, nil
		case 1:
			if _, err := r.ReadAt(header[8:16], offset+8); err != nil {
				return false, err
			}
			size = int64(binary.BigEndian.Uint64(header[8:16]))
		}
		if size < 8 {
			return false, fmt.Errorf("invalid box size %d at offset %d", size, offset)
		}
		offset += size
	}
}
