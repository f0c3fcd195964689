package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lazymail/phish-analyzer/internal/core"
)

// ErrNotFound is returned when a stored report is not found
var ErrNotFound = errors.New("report not found")

type memoryRecord struct {
	report    *core.AnalysisReport
	source    string
	storedAt  time.Time
	expiresAt time.Time
}

// MemoryStore is an in-memory implementation of the MessageStore interface
type MemoryStore struct {
	records     map[string]*memoryRecord
	mu          sync.RWMutex
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMemoryStore creates a new in-memory report store
func NewMemoryStore(logger *zap.Logger, retention, cleanupFreq time.Duration) *MemoryStore {
	store := &MemoryStore{
		records:     make(map[string]*memoryRecord),
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	// Start background cleanup
	go store.startCleanupTask()

	return store
}

// SaveReport stores a report and returns its storage id
func (s *MemoryStore) SaveReport(ctx context.Context, report *core.AnalysisReport, source string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	now := time.Now()
	s.records[id] = &memoryRecord{
		report:    report,
		source:    source,
		storedAt:  now,
		expiresAt: now.Add(s.retention),
	}
	return id, nil
}

// GetReport retrieves a stored report by id
func (s *MemoryStore) GetReport(ctx context.Context, id string) (*core.AnalysisReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok || time.Now().After(record.expiresAt) {
		return nil, ErrNotFound
	}
	return record.report, nil
}

// ListReports returns summaries of stored reports, newest first
func (s *MemoryStore) ListReports(ctx context.Context, limit, offset int) ([]core.ReportSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	summaries := make([]core.ReportSummary, 0, len(s.records))
	for id, record := range s.records {
		if now.After(record.expiresAt) {
			continue
		}
		summaries = append(summaries, core.ReportSummary{
			ID:             id,
			MessageID:      record.report.Message.MessageID,
			Sender:         record.report.Message.Sender,
			Subject:        record.report.Message.Subject,
			Classification: record.report.Verdict.Classification,
			RiskScore:      record.report.Verdict.CombinedRiskScore,
			AnalyzedAt:     record.report.AnalyzedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].AnalyzedAt.After(summaries[j].AnalyzedAt)
	})

	if offset >= len(summaries) {
		return []core.ReportSummary{}, nil
	}
	summaries = summaries[offset:]
	if limit > 0 && limit < len(summaries) {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// Cleanup removes reports past their retention window
func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expiredCount := 0

	for id, record := range s.records {
		if now.After(record.expiresAt) {
			delete(s.records, id)
			expiredCount++
		}
	}

	s.logger.Debug("Cleaned up expired reports", zap.Int("expired_count", expiredCount))
	return nil
}

// startCleanupTask starts a background task to clean up expired reports
func (s *MemoryStore) startCleanupTask() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Cleanup(context.Background()); err != nil {
				s.logger.Error("Failed to clean up report store", zap.Error(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	close(s.stopCh)
}
