// Package middleware provides HTTP middleware for the media-prep API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - Request body limits for uploads
package middleware
