// Package intake turns raw inbound webhook payloads into threads, triage
// suggestions or parked unmatched mail.
package intake

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/pkg/util"
)

// InboundMessage is the normalized form every provider payload reduces to.
// Fingerprint is a content hash that identifies the same inbound email
// across redeliveries and job retries.
type InboundMessage struct {
	SenderEmail string
	SenderName  string
	Subject     string
	BodyText    string
	BodyHTML    *string
	ReceivedAt  time.Time
	Fingerprint string
}

// Normalize parses a raw webhook body into an InboundMessage. Three shapes
// are accepted: the canonical JSON schema, a provider-style JSON envelope
// (from/text/html), and a raw RFC 5322 message.
func Normalize(body []byte, receivedAt time.Time) (*InboundMessage, error) {
	var msg *InboundMessage
	var err error
	if gjson.ValidBytes(body) {
		msg, err = fromJSON(body)
	} else {
		msg, err = fromRFC5322(body)
	}
	if err != nil {
		return nil, err
	}

	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = receivedAt
	}
	if err := validate(msg); err != nil {
		return nil, err
	}
	msg.Fingerprint = contentFingerprint(msg)
	return msg, nil
}

// contentFingerprint hashes the fields that identify one email. The same
// message delivered twice, or a job retried after a partial failure, hashes
// to the same value.
func contentFingerprint(msg *InboundMessage) string {
	h := sha256.New()
	h.Write([]byte(msg.SenderEmail))
	h.Write([]byte{0})
	h.Write([]byte(msg.ReceivedAt.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write([]byte(msg.Subject))
	h.Write([]byte{0})
	h.Write([]byte(msg.BodyText))
	return hex.EncodeToString(h.Sum(nil))
}

func fromJSON(body []byte) (*InboundMessage, error) {
	root := gjson.ParseBytes(body)

	msg := &InboundMessage{
		SenderEmail: root.Get("sender_email").String(),
		SenderName:  root.Get("sender_name").String(),
		Subject:     root.Get("subject").String(),
		BodyText:    root.Get("body_text").String(),
	}

	// Provider-style envelope: "from" is either an object or a display
	// address, the body lives under "text"/"html".
	if msg.SenderEmail == "" {
		from := root.Get("from")
		switch {
		case from.IsObject():
			msg.SenderEmail = from.Get("email").String()
			if msg.SenderName == "" {
				msg.SenderName = from.Get("name").String()
			}
		case from.Exists():
			if addr, err := mail.ParseAddress(from.String()); err == nil {
				msg.SenderEmail = addr.Address
				if msg.SenderName == "" {
					msg.SenderName = addr.Name
				}
			}
		}
	}
	if msg.BodyText == "" {
		msg.BodyText = root.Get("text").String()
	}
	if html := firstNonEmpty(root.Get("body_html").String(), root.Get("html").String()); html != "" {
		msg.BodyHTML = &html
	}

	if ts := firstNonEmpty(root.Get("received_at").String(), root.Get("date").String()); ts != "" {
		if at, err := time.Parse(time.RFC3339, ts); err == nil {
			msg.ReceivedAt = at
		} else if at, err := mail.ParseDate(ts); err == nil {
			msg.ReceivedAt = at
		}
	}
	return msg, nil
}

func fromRFC5322(body []byte) (*InboundMessage, error) {
	parsed, err := mail.ReadMessage(bytes.NewReader(body))
	if err != nil {
		return nil, util.NewValidationError("payload is neither JSON nor a parseable email message", nil)
	}

	msg := &InboundMessage{Subject: parsed.Header.Get("Subject")}
	if addr, err := mail.ParseAddress(parsed.Header.Get("From")); err == nil {
		msg.SenderEmail = addr.Address
		msg.SenderName = addr.Name
	}
	if at, err := parsed.Header.Date(); err == nil {
		msg.ReceivedAt = at
	}
	if raw, err := io.ReadAll(parsed.Body); err == nil {
		msg.BodyText = strings.TrimSpace(string(raw))
	}
	return msg, nil
}

func validate(msg *InboundMessage) error {
	if msg.SenderEmail == "" {
		return util.NewValidationError("sender email is required", nil)
	}
	if _, err := mail.ParseAddress(msg.SenderEmail); err != nil {
		return util.NewValidationError("sender email is not a valid address", map[string]any{"sender_email": msg.SenderEmail})
	}
	if msg.Subject == "" && msg.BodyText == "" {
		return util.NewValidationError("message has neither subject nor body", nil)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// AsDomainMessage converts the normalized form into a thread message row.
func (m *InboundMessage) AsDomainMessage(threadID string) *domain.Message {
	return &domain.Message{
		ThreadID:    threadID,
		Direction:   domain.MessageDirectionInbound,
		SenderEmail: m.SenderEmail,
		SenderName:  m.SenderName,
		Subject:     m.Subject,
		BodyText:    m.BodyText,
		BodyHTML:    m.BodyHTML,
		ReceivedAt:  m.ReceivedAt,
		Fingerprint: m.Fingerprint,
	}
}
