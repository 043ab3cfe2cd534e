package media

import (
	"context"
	"path/filepath"
	"strings"

	"media-prep/internal/logging"
	"media-prep/internal/mediatypes"
)

// Classifier decides whether a source is a song, a video, an image or a
// plain document.
type Classifier struct {
	prober Prober
}

// NewClassifier returns a classifier. A nil prober disables song and video
// detection.
func NewClassifier(prober Prober) *Classifier {
	return &Classifier{prober: prober}
}

// ReadMediaInformation probes the source in order song, video, image and
// returns the first match. Media is nil when nothing matched.
func (c *Classifier) ReadMediaInformation(ctx context.Context, path string, content []byte, fileMime string) *Information {
	info := &Information{FileMime: fileMime}
	switch {
	case c.checkForSong(ctx, path, content, info):
	case c.checkForVideo(ctx, path, content, info):
	case c.checkForImage(path, content, info):
	}
	return info
}

func (c *Classifier) checkForSong(ctx context.Context, path string, content []byte, info *Information) bool {
	if c.prober == nil {
		return false
	}
	if !mediatypes.MatchesMimeOrExtension(path, info.FileMime, mediatypes.SongMimes, mediatypes.SongExtensions) {
		return false
	}

	song, err := c.prober.ProbeSong(ctx, path, content)
	if err != nil {
		logging.Debug("Song probe failed for %s: %v", displayName(path), err)
		return false
	}
	if song.Duration < 0 {
		return false
	}
	if song.Cover != nil && !ValidateThumbDimensions(Dimensions(song.Cover)) {
		song.Cover = nil
	}
	info.Media = song
	return true
}

func (c *Classifier) checkForVideo(ctx context.Context, path string, content []byte, info *Information) bool {
	if c.prober == nil {
		return false
	}
	if !mediatypes.MatchesMimeOrExtension(path, info.FileMime, mediatypes.VideoMimes, mediatypes.VideoExtensions) {
		return false
	}

	video, err := c.prober.ProbeVideo(ctx, path, content)
	if err != nil {
		logging.Debug("Video probe failed for %s: %v", displayName(path), err)
		return false
	}
	if video.Duration < 0 || !ValidateThumbDimensions(Dimensions(video.Thumbnail)) {
		return false
	}
	if strings.EqualFold(filepath.Ext(path), ".mp4") {
		info.FileMime = "video/mp4"
	}
	info.Media = video
	return true
}

func (c *Classifier) checkForImage(path string, content []byte, info *Information) bool {
	img, animated, err := ReadImage(path, content)
	if err != nil {
		logging.Debug("Not an image %s: %v", displayName(path), err)
		return false
	}
	info.Media = &Image{Data: img, Animated: animated}
	return true
}

func displayName(path string) string {
	if path == "" {
		return "<memory>"
	}
	return filepath.Base(path)
}
