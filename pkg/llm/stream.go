package llm

// Stream is an open streaming round-trip with a provider. Next blocks until
// the next delta is available and returns nil, nil once the stream is
// exhausted. Close releases the underlying connection and is safe to call
// more than once.
type Stream interface {
	Next() (*Delta, error)
	Close() error
}
