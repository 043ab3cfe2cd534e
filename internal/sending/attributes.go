package sending

// Attribute describes one property of an outgoing document.
// The set of implementations is closed.
type Attribute interface {
	AttributeKind() string
}

// FilenameAttribute carries the file name shown to the receiver.
type FilenameAttribute struct {
	Name string `json:"name"`
}

// ImageSizeAttribute carries the pixel size of an image document.
type ImageSizeAttribute struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

// AnimatedAttribute marks GIFs and silent looping videos.
type AnimatedAttribute struct{}

// StickerAttribute marks a WebP image small enough to be a sticker.
// It is never attached to a sticker set at preparation time.
type StickerAttribute struct {
	Alt   string `json:"alt"`
	SetID uint64 `json:"setId"`
}

// AudioAttribute describes a song or a voice note.
type AudioAttribute struct {
	Voice     bool   `json:"voice"`
	Duration  int    `json:"duration"`
	Title     string `json:"title,omitempty"`
	Performer string `json:"performer,omitempty"`
	// Waveform is 5-bit packed, see EncodeWaveform.
	Waveform []byte `json:"waveform,omitempty"`
}

// VideoAttribute describes a video document.
type VideoAttribute struct {
	Duration          int  `json:"duration"`
	Width             int  `json:"w"`
	Height            int  `json:"h"`
	SupportsStreaming bool `json:"supportsStreaming"`
}

// Attribute kinds.
const (
	KindFilename  = "filename"
	KindImageSize = "imageSize"
	KindAnimated  = "animated"
	KindSticker   = "sticker"
	KindAudio     = "audio"
	KindVideo     = "video"
)

func (FilenameAttribute) AttributeKind() string { return KindFilename }
func (ImageSizeAttribute) AttributeKind() string { return KindImageSize }
func (AnimatedAttribute) AttributeKind() string { return KindAnimated }
func (StickerAttribute) AttributeKind() string { return KindSticker }
func (AudioAttribute) AttributeKind() string { return KindAudio }
func (VideoAttribute) AttributeKind() string { return KindVideo }

// EncodeWaveform packs samples into 5 bits each, least significant bit first.
// Only the low 5 bits of every sample are kept.
func EncodeWaveform(samples []byte) []byte {
	bitsCount := len(samples) * 5
	bytesCount := (bitsCount + 7) / 8
	// one spare byte so every sample can be written as a 16-bit window
	out := make([]byte, bytesCount+1)
	for i, value := range samples {
		byteIndex := (i * 5) / 8
		bitShift := uint((i * 5) % 8)
		window := uint16(value&0x1F) << bitShift
		out[byteIndex] |= byte(window)
		out[byteIndex+1] |= byte(window >> 8)
	}
	return out[:bytesCount]
}

// DecodeWaveform unpacks data produced by EncodeWaveform. Padding bits may
// decode as trailing zero samples.
func DecodeWaveform(data []byte) []byte {
	count := len(data) * 8 / 5
	out := make([]byte, count)
	for i := range out {
		byteIndex := (i * 5) / 8
		bitShift := uint((i * 5) % 8)
		window := uint16(data[byteIndex])
		if byteIndex+1 < len(data) {
			window |= uint16(data[byteIndex+1]) << 8
		}
		out[i] = byte(window>>bitShift) & 0x1F
	}
	return out
}
