package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"musicschool_go/models"

	"github.com/gofiber/fiber/v2"
	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
)

// InboxReceiver stores messages sent to the school's LINE account.
type InboxReceiver interface {
	Receive(ctx context.Context, lineUserID, text string) (*models.SmsMessage, error)
}

// LineWebhookHandler accepts LINE Messaging API callbacks.
type LineWebhookHandler struct {
	secret string
	inbox  InboxReceiver
}

// NewLineWebhookHandler returns a handler that acknowledges and ignores
// callbacks when secret is empty.
func NewLineWebhookHandler(secret string, inbox InboxReceiver) *LineWebhookHandler {
	if secret == "" {
		logrus.Warn("LINE channel secret missing: webhook disabled")
	}
	return &LineWebhookHandler{secret: secret, inbox: inbox}
}

func (h *LineWebhookHandler) Handle(c *fiber.Ctx) error {
	if h.secret == "" || h.inbox == nil {
		return c.SendStatus(fiber.StatusOK)
	}

	signature := c.Get("X-Line-Signature")
	if signature == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	body := c.Body()
	if !validateSignature(h.secret, body, signature) {
		logrus.WithField("ip", c.IP()).Warn("LINE webhook signature mismatch")
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var webhook struct {
		Events []*linebot.Event `json:"events"`
	}
	if err := json.Unmarshal(body, &webhook); err != nil {
		logrus.WithError(err).Error("Failed to parse LINE webhook body")
		return c.SendStatus(fiber.StatusBadRequest)
	}

	for _, event := range webhook.Events {
		h.dispatch(c.UserContext(), event)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *LineWebhookHandler) dispatch(ctx context.Context, event *linebot.Event) {
	if event.Source == nil {
		return
	}
	log := logrus.WithFields(logrus.Fields{"event": event.Type, "user_id": event.Source.UserID})

	switch event.Type {
	case linebot.EventTypeMessage:
		text, ok := event.Message.(*linebot.TextMessage)
		if !ok {
			log.Debug("Ignoring non-text LINE message")
			return
		}
		if _, err := h.inbox.Receive(ctx, event.Source.UserID, text.Text); err != nil {
			log.WithError(err).Error("Failed to store LINE message")
		}
	case linebot.EventTypeFollow, linebot.EventTypeUnfollow:
		log.Info("LINE follow state changed")
	}
}

// computeSignature is base64(HMAC-SHA256(secret, body)).
func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validateSignature(secret string, body []byte, signature string) bool {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}
