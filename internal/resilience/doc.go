// Package resilience groups the fault tolerance patterns used around the
// service's external dependencies: circuit breakers and retry with
// exponential backoff. The catalog API, the preview CDN, the transcription
// and embedding backends and the checkpoint store each get their own
// breaker and backoff profile.
package resilience
