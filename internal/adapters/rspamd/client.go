package rspamd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lazymail/phish-analyzer/internal/core"
)

const defaultRequiredScore = 15.0

// Client talks to an rspamd normal worker over HTTP. The check endpoint
// needs no authentication, unlike the controller port.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// scanReply mirrors the fields of an rspamd /checkv2 response we consume.
type scanReply struct {
	Score         float64               `json:"score"`
	RequiredScore float64               `json:"required_score"`
	Action        string                `json:"action"`
	Symbols       map[string]symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// NewClient creates an rspamd client for the given worker host and port.
// The timeout bounds the whole check request including body transfer.
func NewClient(host string, port int, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// CheckMessage submits raw message bytes for scoring. It always returns a
// populated result: transport errors, timeouts and non-200 responses
// degrade to an unavailable result instead of propagating.
func (c *Client) CheckMessage(ctx context.Context, raw []byte) *core.ReputationResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkv2", bytes.NewReader(raw))
	if err != nil {
		return c.fallback(err.Error())
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Reputation engine unreachable", zap.Error(err))
		return c.fallback(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		c.logger.Warn("Reputation engine returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return c.fallback(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	var reply scanReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		c.logger.Warn("Failed to decode reputation response", zap.Error(err))
		return c.fallback(fmt.Sprintf("bad response body: %v", err))
	}

	return parseReply(&reply)
}

// Ping reports whether the engine answers its liveness endpoint. Failures
// are a boolean, never an error.
func (c *Client) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func parseReply(reply *scanReply) *core.ReputationResult {
	symbols := make([]core.ReputationSymbol, 0, len(reply.Symbols))
	for name, info := range reply.Symbols {
		symbols = append(symbols, core.ReputationSymbol{
			Name:        name,
			Score:       info.Score,
			Description: info.Description,
		})
	}
	// The wire format is an unordered object; order by weight so the same
	// reply always yields the same record list.
	sort.Slice(symbols, func(i, j int) bool {
		if symbols[i].Score != symbols[j].Score {
			return symbols[i].Score > symbols[j].Score
		}
		return symbols[i].Name < symbols[j].Name
	})

	action := strings.ToLower(reply.Action)
	if action == "" {
		action = "no action"
	}

	requiredScore := reply.RequiredScore
	if requiredScore == 0 {
		requiredScore = defaultRequiredScore
	}

	return &core.ReputationResult{
		Score:          reply.Score,
		RequiredScore:  requiredScore,
		Action:         action,
		Classification: actionToClassification(action),
		Symbols:        symbols,
		IsSpam:         action == "reject" || action == "rewrite subject" || action == "add header",
		IsAvailable:    true,
	}
}

func actionToClassification(action string) string {
	switch action {
	case "reject", "rewrite subject":
		return "spam"
	case "add header", "greylist", "soft reject":
		return "suspicious"
	case "no action":
		return "ham"
	default:
		return "unknown"
	}
}

func (c *Client) fallback(reason string) *core.ReputationResult {
	return &core.ReputationResult{
		Score:          0,
		RequiredScore:  defaultRequiredScore,
		Action:         "no action",
		Classification: "unknown",
		Symbols:        []core.ReputationSymbol{},
		IsSpam:         false,
		IsAvailable:    false,
		Error:          reason,
	}
}
