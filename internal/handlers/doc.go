// Package handlers contains the HTTP handlers for the photo archive
// API: search (synchronous and async job-based), keyword suggestions,
// file lookups, and the admin surface that triggers and polls the
// background maintenance runs.
package handlers
