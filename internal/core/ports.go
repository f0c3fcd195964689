package core

import (
	"context"
)

// ReputationClient defines the interface to the external reputation engine.
type ReputationClient interface {
	// CheckMessage submits the raw message bytes for scoring. It never
	// returns a transport error; an unreachable engine yields a result
	// with IsAvailable=false.
	CheckMessage(ctx context.Context, raw []byte) *ReputationResult

	// Ping reports whether the engine answers its liveness endpoint.
	Ping(ctx context.Context) bool
}

// MessageStore defines the interface for persisting analysis reports.
type MessageStore interface {
	// SaveReport stores a report and returns its storage id.
	SaveReport(ctx context.Context, report *AnalysisReport, source string) (string, error)

	// GetReport retrieves a stored report by id.
	GetReport(ctx context.Context, id string) (*AnalysisReport, error)

	// ListReports returns summaries of stored reports, newest first.
	ListReports(ctx context.Context, limit, offset int) ([]ReportSummary, error)

	// Cleanup removes reports past their retention window.
	Cleanup(ctx context.Context) error
}
