// Package handlers provides HTTP request handlers for the media-prep API.
//
// It includes handlers for:
//   - Submitting files and voice notes for preparation
//   - Cancelling queued tasks and reading their outcome
//   - Reading completed albums
//   - Health checks and build information
package handlers
