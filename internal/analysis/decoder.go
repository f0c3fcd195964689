package analysis

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/lazymail/phish-analyzer/internal/core"
)

// maxPartDepth bounds recursion into nested multipart containers so a
// crafted message cannot drive the decoder into unbounded nesting.
const maxPartDepth = 8

// DecodeMessage turns raw message bytes into a DecodedMessage. Only a total
// parse failure is fatal (core.ErrMalformedMessage); malformed headers,
// unknown charsets and broken body parts all degrade to best-effort text.
func DecodeMessage(raw []byte) (*core.DecodedMessage, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedMessage, err)
	}

	headers := decodeHeaders(msg.Header)

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		// A truncated body is still analyzable; keep what was read.
		body = nil
	}

	var texts, htmls []string
	collectBodies(body, msg.Header.Get("Content-Type"),
		msg.Header.Get("Content-Transfer-Encoding"), 0, &texts, &htmls)

	decoded := &core.DecodedMessage{
		Subject:    decodeHeaderValue(msg.Header.Get("Subject")),
		Sender:     decodeHeaderValue(msg.Header.Get("From")),
		Recipients: splitAddressList(decodeHeaderValue(msg.Header.Get("To"))),
		Cc:         splitAddressList(decodeHeaderValue(msg.Header.Get("Cc"))),
		ReplyTo:    decodeHeaderValue(msg.Header.Get("Reply-To")),
		Date:       msg.Header.Get("Date"),
		BodyText:   strings.Join(texts, "\n\n"),
		BodyHTML:   strings.Join(htmls, "\n\n"),
		Headers:    headers,
	}

	decoded.MessageID = strings.TrimSpace(msg.Header.Get("Message-ID"))
	if decoded.MessageID == "" {
		decoded.MessageID = "generated-" + uuid.NewString()
	}

	return decoded, nil
}

// decodeHeaders converts the parsed header block into a map that keeps
// repeated headers as ordered lists and decodes RFC 2047 encoded words.
func decodeHeaders(header mail.Header) map[string][]string {
	headers := make(map[string][]string, len(header))
	for key, values := range header {
		decoded := make([]string, 0, len(values))
		for _, value := range values {
			decoded = append(decoded, decodeHeaderValue(value))
		}
		headers[key] = decoded
	}
	return headers
}

var headerDecoder = mime.WordDecoder{CharsetReader: charsetReader}

// decodeHeaderValue decodes RFC 2047 encoded words in a header value.
// Undecodable values come back unchanged rather than failing.
func decodeHeaderValue(value string) string {
	if value == "" {
		return ""
	}
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}

// collectBodies appends the decoded text/plain and text/html content of a
// body (possibly a multipart container) to texts and htmls, in document
// order. Parts that cannot be read are skipped.
func collectBodies(body []byte, contentType, transferEncoding string, depth int, texts, htmls *[]string) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Missing or unparseable Content-Type is treated as plain text.
		mediaType = "text/plain"
	}
	mediaType = strings.ToLower(mediaType)

	if strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxPartDepth {
			return
		}
		boundary := params["boundary"]
		if boundary == "" {
			return
		}
		reader := multipart.NewReader(bytes.NewReader(body), boundary)
		for {
			part, err := reader.NextPart()
			if err != nil {
				return
			}
			partBody, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			collectBodies(partBody, part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"), depth+1, texts, htmls)
		}
	}

	switch mediaType {
	case "text/plain":
		*texts = append(*texts, decodeBody(body, transferEncoding, params["charset"]))
	case "text/html":
		*htmls = append(*htmls, decodeBody(body, transferEncoding, params["charset"]))
	}
}

// decodeBody reverses the declared transfer encoding and converts the
// declared charset to UTF-8. Every failure falls back to the bytes as-is.
func decodeBody(body []byte, transferEncoding, charset string) string {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		cleaned := strings.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, string(body))
		if decoded, err := base64.StdEncoding.DecodeString(cleaned); err == nil {
			body = decoded
		} else if decoded, err := base64.RawStdEncoding.DecodeString(cleaned); err == nil {
			body = decoded
		}
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(body)))
		if err == nil || len(decoded) > 0 {
			body = decoded
		}
	}

	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "us-ascii") {
		if converted, err := convertCharset(body, charset); err == nil {
			body = converted
		}
	}

	return string(body)
}

func convertCharset(body []byte, charset string) ([]byte, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
}

// splitAddressList splits a recipient header on commas, trimming
// whitespace and dropping empty entries.
func splitAddressList(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	addresses := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			addresses = append(addresses, trimmed)
		}
	}
	return addresses
}
