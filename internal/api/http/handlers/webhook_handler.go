package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/intake"
	"github.com/spec-kit/intake-service/internal/pipeline"
	"github.com/spec-kit/intake-service/pkg/util"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

// WebhookHandler receives inbound email webhooks.
type WebhookHandler struct {
	pipeline *pipeline.Pipeline
	secret   string
	logger   *zap.Logger
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(p *pipeline.Pipeline, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{pipeline: p, secret: secret, logger: logger}
}

// Inbound POST /webhooks/inbound. A 202 means the message was accepted for
// processing, not that it produced a thread.
func (h *WebhookHandler) Inbound(c *fiber.Ctx) error {
	body := c.Body()
	if !h.verify(body, c.Get(SignatureHeader)) {
		h.logger.Warn("webhook signature rejected", zap.String("ip", c.IP()))
		return util.NewUnauthorized("invalid webhook signature")
	}

	msg, err := intake.Normalize(body, nowUTC())
	if err != nil {
		return err
	}

	if err := h.pipeline.EnqueueInbound(c.UserContext(), msg); err != nil {
		return util.NewInternalError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

// verify checks the HMAC when a secret is configured. Without one the
// deployment has opted out of signature checking and every payload passes.
func (h *WebhookHandler) verify(body []byte, header string) bool {
	if h.secret == "" {
		return true
	}
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	provided := strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}
