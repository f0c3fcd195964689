package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lazymail/phish-analyzer/internal/core"
)

// MySQLStore is a MySQL implementation of the MessageStore interface
type MySQLStore struct {
	db          *sql.DB
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMySQLStore creates a new MySQL report store
func NewMySQLStore(dsn string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reports (
			id VARCHAR(36) PRIMARY KEY,
			message_id VARCHAR(500),
			sender VARCHAR(500),
			subject TEXT,
			classification VARCHAR(50),
			risk_score FLOAT,
			report LONGTEXT,
			source VARCHAR(255),
			analyzed_at TIMESTAMP,
			expires_at TIMESTAMP,
			INDEX idx_reports_expires_at (expires_at),
			INDEX idx_reports_analyzed_at (analyzed_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	store := &MySQLStore{
		db:          db,
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	// Start background cleanup
	go store.startCleanupTask()

	return store, nil
}

// SaveReport stores a report and returns its storage id
func (s *MySQLStore) SaveReport(ctx context.Context, report *core.AnalysisReport, source string) (string, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	id := uuid.NewString()
	expiresAt := time.Now().Add(s.retention)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, message_id, sender, subject, classification, risk_score, report, source, analyzed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, report.Message.MessageID, report.Message.Sender, report.Message.Subject,
		report.Verdict.Classification, report.Verdict.CombinedRiskScore, string(payload),
		source, report.AnalyzedAt, expiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert report: %w", err)
	}

	return id, nil
}

// GetReport retrieves a stored report by id
func (s *MySQLStore) GetReport(ctx context.Context, id string) (*core.AnalysisReport, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT report FROM reports
		WHERE id = ? AND expires_at > NOW()
	`, id).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	var report core.AnalysisReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("failed to decode stored report: %w", err)
	}
	return &report, nil
}

// ListReports returns summaries of stored reports, newest first
func (s *MySQLStore) ListReports(ctx context.Context, limit, offset int) ([]core.ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, sender, subject, classification, risk_score, analyzed_at
		FROM reports
		WHERE expires_at > NOW()
		ORDER BY analyzed_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var summaries []core.ReportSummary
	for rows.Next() {
		var summary core.ReportSummary
		var analyzedAt sql.NullTime
		if err := rows.Scan(&summary.ID, &summary.MessageID, &summary.Sender, &summary.Subject,
			&summary.Classification, &summary.RiskScore, &analyzedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		if analyzedAt.Valid {
			summary.AnalyzedAt = analyzedAt.Time
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate report rows: %w", err)
	}
	if summaries == nil {
		summaries = []core.ReportSummary{}
	}
	return summaries, nil
}

// Cleanup removes reports past their retention window
func (s *MySQLStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM reports WHERE expires_at <= NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to clean up expired reports: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired reports", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// startCleanupTask starts a background task to clean up expired reports
func (s *MySQLStore) startCleanupTask() {
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

// Stop stops the background cleanup task and closes the database connection
func (s *MySQLStore) Stop() {
	close(s.stopCh)
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
