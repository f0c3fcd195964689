package ports

// MessageFilter defines the interface for a message ingestion surface
// that feeds raw messages into the analysis pipeline.
type MessageFilter interface {
	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
