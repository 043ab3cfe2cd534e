// Package main provides the entry point for media-prep.
//
// media-prep accepts files over HTTP, prepares them for upload on a single
// background worker and records the results in a SQLite outbox. Preparing
// a file means classifying it (song, video, image or plain document),
// building its thumbnail and photo sizes, and splitting the payload into
// 32 KiB parts with an MD5 checksum.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Reads MEDIAPREP_* variables, prepares the
//     spool and database directories and sets GOMEMLIMIT
//  2. Outbox Initialization: Opens the SQLite outbox in WAL mode
//  3. Component Initialization:
//     - libvips for sticker WebP thumbnails and oversized images
//     - ffprobe/ffmpeg for song and video metadata
//     - The owner loop that runs task completions
//     - The preparation queue and its worker
//     - The memory monitor that pauses preparation under pressure
//     - The metrics collector
//  4. HTTP Server Setup: Routes, logging, metrics and body limits
//  5. Graceful Shutdown: Handles SIGINT/SIGTERM and stops every component
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. API Server (default port 8080):
//     - POST /api/send: multipart upload of one or more files
//     - POST /api/send/voice: raw voice note
//     - GET/DELETE /api/tasks/{id}: task state and cancellation
//     - GET /api/albums/{group}: album items
//     - GET /health, /livez, /api/version
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Liveness endpoint (/health)
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests
//  2. Stop the memory monitor and close the preparation queue, discarding
//     unfinished tasks
//  3. Stop the owner loop
//  4. Stop the metrics collector and outbox maintenance
//  5. Shutdown metrics server (if running)
//  6. Close the outbox
//
// # Build Requirements
//
// CGO is required for SQLite and libvips. FFmpeg is optional; without it
// songs and videos are sent as documents.
//
//	go build -o media-prep ./cmd/media-prep
package main
