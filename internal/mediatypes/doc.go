// Package mediatypes holds the MIME and extension tables used to classify
// outgoing files, plus MIME detection for files and in-memory payloads.
//
// # Classification tables
//
// SongMimes/SongExtensions and VideoMimes/VideoExtensions are the
// whitelists checked before a file is probed as audio or video.
// MatchesMimeOrExtension accepts a file when either its MIME type or its
// (case-insensitive) extension is listed:
//
//	if mediatypes.MatchesMimeOrExtension(path, mime, mediatypes.SongMimes, mediatypes.SongExtensions) {
//	    // probe as a song
//	}
//
// # Detection
//
// ForFile sniffs file content and falls back to the extension table.
// ForData sniffs an in-memory payload and also returns the canonical
// extension, used to synthesize a filename:
//
//	mime, ext := mediatypes.ForData(content)
//	name := mediatypes.DefaultName("file", ext, time.Now())
package mediatypes
