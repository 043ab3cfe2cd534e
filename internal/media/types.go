package media

import "image"

// Kind tags the variants of Media.
type Kind string

const (
	// KindSong is a Song.
	KindSong Kind = "song"
	// KindVideo is a Video.
	KindVideo Kind = "video"
	// KindImage is an Image.
	KindImage Kind = "image"
)

// Media is the closed set of probe results: Song, Video or Image.
type Media interface {
	Kind() Kind
}

// Song is an audio file with a playable duration.
type Song struct {
	Duration  int // seconds, negative when the file could not be read
	Title     string
	Performer string
	Cover     image.Image
}

// Video is a video file with a playable duration and a first frame.
type Video struct {
	Duration          int // seconds, negative when the file could not be read
	IsGifv            bool
	SupportsStreaming bool
	Thumbnail         image.Image
}

// Image is a decoded picture.
type Image struct {
	Data     image.Image
	Animated bool
}

// Kind implements Media.
func (*Song) Kind() Kind { return KindSong }

// Kind implements Media.
func (*Video) Kind() Kind { return KindVideo }

// Kind implements Media.
func (*Image) Kind() Kind { return KindImage }

// Information is what is known about a source before it is prepared.
// Media is nil when the source is a plain document.
type Information struct {
	FileMime string
	Media    Media
}

// Song returns the song variant, if any.
func (i *Information) Song() (*Song, bool) {
	if i == nil {
		return nil, false
	}
	s, ok := i.Media.(*Song)
	return s, ok
}

// Video returns the video variant, if any.
func (i *Information) Video() (*Video, bool) {
	if i == nil {
		return nil, false
	}
	v, ok := i.Media.(*Video)
	return v, ok
}

// Image returns the image variant, if any.
func (i *Information) Image() (*Image, bool) {
	if i == nil {
		return nil, false
	}
	img, ok := i.Media.(*Image)
	return img, ok
}

// ValidateThumbDimensions reports whether an image of this size can be
// previewed: both sides positive and neither more than 20 times the other.
func ValidateThumbDimensions(width, height int) bool {
	return width > 0 && height > 0 && width < 20*height && height < 20*width
}

// Dimensions returns the width and height of img, or zeros for nil.
func Dimensions(img image.Image) (int, int) {
	if img == nil {
		return 0, 0
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
