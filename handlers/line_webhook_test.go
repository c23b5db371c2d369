package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicschool_go/models"
)

type fakeInbox struct {
	mu       sync.Mutex
	from     []string
	messages []string
}

func (f *fakeInbox) Receive(_ context.Context, lineUserID, text string) (*models.SmsMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.from = append(f.from, lineUserID)
	f.messages = append(f.messages, text)
	return &models.SmsMessage{Recipient: lineUserID, Message: text}, nil
}

const webhookBody = `{"destination":"Uschool","events":[
{"type":"message","replyToken":"r1","mode":"active","timestamp":1728900000000,"webhookEventId":"e1",
 "deliveryContext":{"isRedelivery":false},"source":{"type":"user","userId":"U-line-4"},
 "message":{"type":"text","id":"100","text":"Running late today"}},
{"type":"message","replyToken":"r2","mode":"active","timestamp":1728900000001,"webhookEventId":"e2",
 "deliveryContext":{"isRedelivery":false},"source":{"type":"user","userId":"U-line-4"},
 "message":{"type":"sticker","id":"101","packageId":"1","stickerId":"2"}},
{"type":"follow","replyToken":"r3","mode":"active","timestamp":1728900000002,"webhookEventId":"e3",
 "deliveryContext":{"isRedelivery":false},"source":{"type":"user","userId":"U-line-9"}}
]}`

func TestValidateSignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	sig := computeSignature("secret", body)

	assert.True(t, validateSignature("secret", body, sig))
	assert.False(t, validateSignature("other", body, sig))
	assert.False(t, validateSignature("secret", []byte(`{}`), sig))
	assert.False(t, validateSignature("secret", body, "not base64!"))
}

func TestLineWebhook(t *testing.T) {
	inbox := &fakeInbox{}
	app := fiber.New()
	app.Post("/line/webhook", NewLineWebhookHandler("secret", inbox).Handle)

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{"missing signature", "", fiber.StatusBadRequest},
		{"wrong signature", computeSignature("other", []byte(webhookBody)), fiber.StatusUnauthorized},
		{"valid", computeSignature("secret", []byte(webhookBody)), fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/line/webhook", strings.NewReader(webhookBody))
			req.Header.Set("Content-Type", "application/json")
			if tt.signature != "" {
				req.Header.Set("X-Line-Signature", tt.signature)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	assert.Equal(t, []string{"U-line-4"}, inbox.from)
	assert.Equal(t, []string{"Running late today"}, inbox.messages)
}

func TestLineWebhookDisabled(t *testing.T) {
	app := fiber.New()
	app.Post("/line/webhook", NewLineWebhookHandler("", &fakeInbox{}).Handle)

	resp, err := app.Test(httptest.NewRequest("POST", "/line/webhook", strings.NewReader(webhookBody)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
