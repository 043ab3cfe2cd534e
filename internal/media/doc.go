// Package media classifies outgoing files and derives their previews.
//
// The Classifier probes a source in a fixed order (song, video, image) and
// returns an Information whose Media field is one of Song, Video or Image,
// or nil for plain documents. Songs and videos are probed through a Prober;
// FFProbe implements it with the ffprobe and ffmpeg binaries.
//
// The ThumbnailBuilder produces bounded previews and photo-size variants
// with github.com/disintegration/imaging, and encodes sticker thumbnails as
// WebP through libvips when it is available.
package media
