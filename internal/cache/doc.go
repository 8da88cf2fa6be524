// Package cache defines the blob backends that persist Nx cache artifacts and
// the length guard that protects their write path. A Backend is keyed by a
// validated hash string and exposes existence, size, streaming read and
// streaming write. FileStore commits through a temp file + rename in the same
// directory; ObjectStore streams a multipart upload that is only completed
// when the body ends cleanly. GuardedWriter sits in front of either backend
// and cross-checks the client's declared Content-Length against the bytes it
// observes so a short or oversized upload never becomes visible under its key.
package cache
