package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicschool_go/models"
)

type memSmsStore struct {
	lineIDs map[uint]string
	saved   []models.SmsMessage
	nextID  uint
}

func (m *memSmsStore) StudentLineID(_ context.Context, id uint) (string, error) {
	v, ok := m.lineIDs[id]
	if !ok {
		return "", errors.New("record not found")
	}
	return v, nil
}

func (m *memSmsStore) StudentIDByLineID(_ context.Context, lineID string) (*uint, error) {
	for id, v := range m.lineIDs {
		if v == lineID {
			id := id
			return &id, nil
		}
	}
	return nil, nil
}

func (m *memSmsStore) CreateSms(_ context.Context, msg *models.SmsMessage) error {
	m.nextID++
	msg.ID = m.nextID
	m.saved = append(m.saved, *msg)
	return nil
}

func (m *memSmsStore) SaveSms(_ context.Context, msg *models.SmsMessage) error {
	for i := range m.saved {
		if m.saved[i].ID == msg.ID {
			m.saved[i] = *msg
		}
	}
	return nil
}

type fakeSender struct {
	to, text []string
	err      error
}

func (f *fakeSender) Send(_ context.Context, to, text string) error {
	f.to = append(f.to, to)
	f.text = append(f.text, text)
	return f.err
}

func TestMessagingSendToStudent(t *testing.T) {
	store := &memSmsStore{lineIDs: map[uint]string{4: "U-line-4"}}
	sender := &fakeSender{}
	svc := NewMessagingService(store, sender)
	fixed := time.Date(2024, 3, 11, 18, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	hub := &recordingHub{}
	svc.SetBroadcaster(hub)

	id := uint(4)
	msg, err := svc.Send(context.Background(), SendRequest{StudentID: &id, Message: "  See you tomorrow  "})
	require.NoError(t, err)
	assert.Equal(t, models.SmsSent, msg.Status)
	assert.Equal(t, "U-line-4", msg.Recipient)
	assert.Equal(t, "See you tomorrow", msg.Message)
	require.NotNil(t, msg.SentAt)
	assert.Equal(t, fixed, *msg.SentAt)

	assert.Equal(t, []string{"U-line-4"}, sender.to)
	require.Len(t, store.saved, 1)
	assert.Equal(t, models.SmsSent, store.saved[0].Status)
	require.Len(t, hub.messages, 1)
}

func TestMessagingDeliveryFailure(t *testing.T) {
	store := &memSmsStore{}
	svc := NewMessagingService(store, &fakeSender{err: errors.New("invalid reply token")})

	msg, err := svc.Send(context.Background(), SendRequest{Recipient: "U123", Message: "hi"})
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	require.NotNil(t, msg)
	assert.Equal(t, models.SmsFailed, msg.Status)
	assert.Contains(t, msg.Error, "invalid reply token")
	assert.Nil(t, msg.SentAt)
	assert.Equal(t, models.SmsFailed, store.saved[0].Status)
}

func TestMessagingValidation(t *testing.T) {
	noLine := uint(9)
	tests := []struct {
		name   string
		sender MessageSender
		req    SendRequest
		want   error
	}{
		{"empty", &fakeSender{}, SendRequest{Recipient: "U1", Message: "   "}, ErrEmptyMessage},
		{"too long", &fakeSender{}, SendRequest{Recipient: "U1", Message: strings.Repeat("ş", MaxMessageLength+1)}, ErrMessageTooLong},
		{"disabled", nil, SendRequest{Recipient: "U1", Message: "hi"}, ErrMessagingDisabled},
		{"no recipient", &fakeSender{}, SendRequest{Message: "hi"}, ErrNoRecipient},
		{"student without line id", &fakeSender{}, SendRequest{StudentID: &noLine, Message: "hi"}, ErrNoRecipient},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &memSmsStore{lineIDs: map[uint]string{9: ""}}
			_, err := NewMessagingService(store, tc.sender).Send(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, store.saved)
		})
	}
}

func TestNewLineSenderRequiresCredentials(t *testing.T) {
	_, err := NewLineSender("", "token")
	assert.ErrorIs(t, err, ErrMessagingDisabled)

	s, err := NewLineSender("secret", "token")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestMessagingReceive(t *testing.T) {
	store := &memSmsStore{lineIDs: map[uint]string{4: "U-line-4"}}
	hub := &recordingHub{}
	svc := NewMessagingService(store, nil)
	svc.SetBroadcaster(hub)

	msg, err := svc.Receive(context.Background(), "U-line-4", "  See you Monday  ")
	require.NoError(t, err)
	require.NotNil(t, msg.StudentID)
	assert.Equal(t, uint(4), *msg.StudentID)
	assert.Equal(t, models.SmsInbound, msg.Direction)
	assert.Equal(t, models.SmsReceived, msg.Status)
	assert.Equal(t, "See you Monday", msg.Message)
	require.Len(t, hub.messages, 1)
	assert.Equal(t, "sms.received", hub.messages[0].(map[string]interface{})["type"])

	msg, err = svc.Receive(context.Background(), "U-unknown", "hello")
	require.NoError(t, err)
	assert.Nil(t, msg.StudentID)
	assert.Len(t, store.saved, 2)

	_, err = svc.Receive(context.Background(), "U-line-4", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}
