package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/lazymail/phish-analyzer/internal/analysis"
	"github.com/lazymail/phish-analyzer/internal/core"
)

// SMTPFilter is a content filter in the Postfix before-queue style: it
// accepts a message over SMTP, runs the analysis pipeline, stamps the
// verdict into headers and relays the message onward.
type SMTPFilter struct {
	analyzer        *analysis.Analyzer
	store           core.MessageStore
	logger          *zap.Logger
	listenAddr      string
	server          *smtp.Server
	blockQuarantine bool
	classHeader     string
	scoreHeader     string
	actionHeader    string
	relayAddr       string
	relayPort       int
	relayEnabled    bool
}

// NewSMTPFilter creates a new SMTP content filter
func NewSMTPFilter(
	analyzer *analysis.Analyzer,
	store core.MessageStore,
	logger *zap.Logger,
	listenAddr string,
	blockQuarantine bool,
	classHeader string,
	scoreHeader string,
	actionHeader string,
	relayAddr string,
	relayPort int,
	relayEnabled bool,
) *SMTPFilter {
	return &SMTPFilter{
		analyzer:        analyzer,
		store:           store,
		logger:          logger,
		listenAddr:      listenAddr,
		blockQuarantine: blockQuarantine,
		classHeader:     classHeader,
		scoreHeader:     scoreHeader,
		actionHeader:    actionHeader,
		relayAddr:       relayAddr,
		relayPort:       relayPort,
		relayEnabled:    relayEnabled,
	}
}

// Start starts the SMTP filter service
func (f *SMTPFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("SMTP filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP filter service
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// relay forwards the stamped message to the downstream MTA using go-smtp
func (f *SMTPFilter) relay(sender string, recipients []string, messageData []byte) error {
	relayAddr := fmt.Sprintf("%s:%d", f.relayAddr, f.relayPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", relayAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(messageData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *SMTPFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *SMTPFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for the filter)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data runs the pipeline over the received message and relays it with the
// verdict stamped into headers. Only a message that cannot be decoded at
// all is refused outright.
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := s.filter.analyzer.Analyze(ctx, raw)
	if err != nil {
		if errors.Is(err, core.ErrMalformedMessage) {
			s.filter.logger.Warn("Refusing undecodable message",
				zap.String("sender", s.sender),
				zap.Error(err))
			return &smtp.SMTPError{
				Code:         554,
				EnhancedCode: smtp.EnhancedCode{5, 6, 0},
				Message:      "Message could not be decoded",
			}
		}
		s.filter.logger.Error("Analysis failed", zap.Error(err), zap.String("sender", s.sender))
		return err
	}

	if s.filter.store != nil {
		if _, err := s.filter.store.SaveReport(ctx, report, "smtp"); err != nil {
			s.filter.logger.Error("Failed to persist report", zap.Error(err))
		}
	}

	verdict := report.Verdict
	if s.filter.blockQuarantine && verdict.RecommendedAction == core.ActionQuarantine {
		s.filter.logger.Info("Rejecting message",
			zap.String("sender", s.sender),
			zap.String("classification", verdict.Classification),
			zap.Float64("risk_score", verdict.CombinedRiskScore))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as %s (risk %.1f)", verdict.Classification, verdict.CombinedRiskScore),
		}
	}

	// Prepend the verdict headers, keeping the original message intact.
	var stamped bytes.Buffer
	fmt.Fprintf(&stamped, "%s: %s\r\n", s.filter.classHeader, verdict.Classification)
	fmt.Fprintf(&stamped, "%s: %.2f\r\n", s.filter.scoreHeader, verdict.CombinedRiskScore)
	fmt.Fprintf(&stamped, "%s: %s\r\n", s.filter.actionHeader, verdict.RecommendedAction)
	stamped.Write(raw)

	if s.filter.relayEnabled {
		if err := s.filter.relay(s.sender, s.recipients, stamped.Bytes()); err != nil {
			s.filter.logger.Error("Failed to relay message",
				zap.Error(err),
				zap.String("sender", s.sender))
			return err
		}
	}

	s.filter.logger.Info("Processed message",
		zap.String("sender", s.sender),
		zap.String("classification", verdict.Classification),
		zap.Float64("risk_score", verdict.CombinedRiskScore),
		zap.String("recommended_action", verdict.RecommendedAction))

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
