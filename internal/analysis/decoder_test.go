package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazymail/phish-analyzer/internal/core"
)

func TestDecodeSimpleMessage(t *testing.T) {
	raw := []byte("From: Alice <alice@example.com>\r\n" +
		"To: bob@example.com, carol@example.com\r\n" +
		"Subject: Quarterly report\r\n" +
		"Message-ID: <abc123@example.com>\r\n" +
		"Date: Mon, 02 Jan 2023 15:04:05 +0000\r\n" +
		"\r\n" +
		"Please find the report attached.\r\n")

	msg, err := DecodeMessage(raw)
	require.NoError(t, err)

	assert.Equal(t, "<abc123@example.com>", msg.MessageID)
	assert.Equal(t, "Quarterly report", msg.Subject)
	assert.Equal(t, "Alice <alice@example.com>", msg.Sender)
	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, msg.Recipients)
	assert.Contains(t, msg.BodyText, "Please find the report attached.")
	assert.Empty(t, msg.BodyHTML)
}

func TestDecodeMultipartAlternative(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"To: rcpt@example.com\r\n" +
		"Subject: Multipart\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"sep\"\r\n" +
		"\r\n" +
		"--sep\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
		"\r\n" +
		"plain version\r\n" +
		"--sep\r\n" +
		"Content-Type: text/html; charset=\"utf-8\"\r\n" +
		"\r\n" +
		"<html><body><p>html version</p></body></html>\r\n" +
		"--sep--\r\n")

	msg, err := DecodeMessage(raw)
	require.NoError(t, err)

	assert.Contains(t, msg.BodyText, "plain version")
	assert.Contains(t, msg.BodyHTML, "<p>html version</p>")
}

func TestDecodeNestedMultipart(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: Nested\r\n" +
		"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
		"\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"inner text\r\n" +
		"--inner\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<b>inner html</b>\r\n" +
		"--inner--\r\n" +
		"--outer--\r\n")

	msg, err := DecodeMessage(raw)
	require.NoError(t, err)

	assert.Contains(t, msg.BodyText, "inner text")
	assert.Contains(t, msg.BodyHTML, "inner html")
}

func TestDecodeEncodedSubject(t *testing.T) {
	// "Hello Wörld" in RFC 2047 base64 form
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: =?UTF-8?B?SGVsbG8gV8O2cmxk?=\r\n" +
		"\r\n" +
		"body\r\n")

	msg, err := DecodeMessage(raw)
	require.NoError(t, err)

	assert.Equal(t, "Hello Wörld", msg.Subject)
}

func TestDecodeQuotedPrintableBody(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: QP\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"caf=C3=A9 menu\r\n")

	msg, err := DecodeMessage(raw)
	require.NoError(t, err)

	assert.Contains(t, msg.BodyText, "café menu")
}

func TestDecodeBase64Body(t *testing.T) {
	// "secret offer" base64-encoded with a line break in the middle
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: B64\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"c2VjcmV0\r\nIG9mZmVy\r\n")

	msg, err := DecodeMessage(raw)
	require.NoError(t, err)

	assert.Contains(t, msg.BodyText, "secret offer")
}

func TestDecodeRepeatedHeadersPreserved(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Received: from mx1.example.com\r\n" +
		"Received: from mx2.example.com\r\n" +
		"Received: from mx3.example.com\r\n" +
		"Subject: Hops\r\n" +
		"\r\n" +
		"body\r\n")

	msg, err := DecodeMessage(raw)
	require.NoError(t, err)

	assert.Len(t, msg.GetHeaderValues("Received"), 3)
	// Case-insensitive lookup
	assert.Len(t, msg.GetHeaderValues("received"), 3)
}

func TestDecodeGeneratesMessageID(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: No id\r\n" +
		"\r\n" +
		"body\r\n")

	msg, err := DecodeMessage(raw)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(msg.MessageID, "generated-"), "got %q", msg.MessageID)
}

func TestDecodeMalformedMessage(t *testing.T) {
	raw := []byte("this is not an email at all\nno header block here\n")

	_, err := DecodeMessage(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedMessage)
}

func TestDecodeUnknownCharsetFallsBack(t *testing.T) {
	raw := []byte("From: sender@example.com\r\n" +
		"Subject: Charset\r\n" +
		"Content-Type: text/plain; charset=\"x-no-such-charset\"\r\n" +
		"\r\n" +
		"raw bytes survive\r\n")

	msg, err := DecodeMessage(raw)
	require.NoError(t, err)

	assert.Contains(t, msg.BodyText, "raw bytes survive")
}
