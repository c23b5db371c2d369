package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"musicschool_go/models"

	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaxMessageLength is the LINE text message limit.
const MaxMessageLength = 5000

var (
	ErrMessagingDisabled = errors.New("messaging is not configured")
	ErrEmptyMessage      = errors.New("message must not be empty")
	ErrMessageTooLong    = fmt.Errorf("message exceeds %d characters", MaxMessageLength)
	ErrNoRecipient       = errors.New("no recipient: student has no LINE id")
	ErrDeliveryFailed    = errors.New("message delivery failed")
)

// MessageSender delivers a text to one recipient.
type MessageSender interface {
	Send(ctx context.Context, to, text string) error
}

// LineSender pushes text messages through the LINE Messaging API.
type LineSender struct {
	bot *linebot.Client
}

// NewLineSender returns ErrMessagingDisabled when credentials are missing.
func NewLineSender(channelSecret, channelToken string) (*LineSender, error) {
	if channelSecret == "" || channelToken == "" {
		return nil, ErrMessagingDisabled
	}
	bot, err := linebot.New(channelSecret, channelToken)
	if err != nil {
		return nil, fmt.Errorf("cannot create LINE bot client: %w", err)
	}
	return &LineSender{bot: bot}, nil
}

func (s *LineSender) Send(ctx context.Context, to, text string) error {
	if _, err := s.bot.PushMessage(to, linebot.NewTextMessage(text)).WithContext(ctx).Do(); err != nil {
		return fmt.Errorf("LINE Messaging API failed: %w", err)
	}
	return nil
}

// SmsStore persists outgoing and incoming messages.
type SmsStore interface {
	StudentLineID(ctx context.Context, studentID uint) (string, error)
	// StudentIDByLineID returns nil when no student uses lineID.
	StudentIDByLineID(ctx context.Context, lineID string) (*uint, error)
	CreateSms(ctx context.Context, m *models.SmsMessage) error
	SaveSms(ctx context.Context, m *models.SmsMessage) error
}

type gormSmsStore struct{ db *gorm.DB }

func NewGormSmsStore(db *gorm.DB) SmsStore { return &gormSmsStore{db: db} }

func (s *gormSmsStore) StudentLineID(ctx context.Context, studentID uint) (string, error) {
	var st models.Student
	if err := s.db.WithContext(ctx).Select("id", "line_id").First(&st, studentID).Error; err != nil {
		return "", err
	}
	return st.LineID, nil
}

func (s *gormSmsStore) StudentIDByLineID(ctx context.Context, lineID string) (*uint, error) {
	var st models.Student
	err := s.db.WithContext(ctx).Select("id").Where("line_id = ?", lineID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st.ID, nil
}

func (s *gormSmsStore) CreateSms(ctx context.Context, m *models.SmsMessage) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *gormSmsStore) SaveSms(ctx context.Context, m *models.SmsMessage) error {
	return s.db.WithContext(ctx).Save(m).Error
}

// SendRequest addresses either a student (resolved to their LINE id) or a raw recipient.
type SendRequest struct {
	StudentID *uint  `json:"student_id"`
	Recipient string `json:"recipient"`
	Message   string `json:"message" validate:"required"`
}

// MessagingService records and delivers outgoing messages.
type MessagingService struct {
	store  SmsStore
	sender MessageSender
	hub    Broadcaster
	now    func() time.Time
}

// NewMessagingService accepts a nil sender; every send then fails with ErrMessagingDisabled.
func NewMessagingService(store SmsStore, sender MessageSender) *MessagingService {
	return &MessagingService{store: store, sender: sender, now: time.Now}
}

func (s *MessagingService) SetBroadcaster(b Broadcaster) { s.hub = b }

// Enabled reports whether a sender is configured.
func (s *MessagingService) Enabled() bool { return s.sender != nil }

// Send stores the message as PENDING, delivers it, then stores the outcome.
// The returned record reflects the final state even when delivery fails.
func (s *MessagingService) Send(ctx context.Context, req SendRequest) (*models.SmsMessage, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if s.sender == nil {
		return nil, ErrMessagingDisabled
	}

	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" && req.StudentID != nil {
		id, err := s.store.StudentLineID(ctx, *req.StudentID)
		if err != nil {
			return nil, fmt.Errorf("lookup student: %w", err)
		}
		recipient = id
	}
	if recipient == "" {
		return nil, ErrNoRecipient
	}

	msg := &models.SmsMessage{
		Direction: models.SmsOutbound,
		StudentID: req.StudentID,
		Recipient: recipient,
		Message:   text,
		Status:    models.SmsPending,
	}
	if err := s.store.CreateSms(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	sendErr := s.sender.Send(ctx, recipient, text)
	if sendErr != nil {
		msg.Status = models.SmsFailed
		msg.Error = sendErr.Error()
	} else {
		now := s.now()
		msg.Status = models.SmsSent
		msg.SentAt = &now
	}
	if err := s.store.SaveSms(ctx, msg); err != nil {
		logrus.WithError(err).WithField("sms_id", msg.ID).Error("Failed to store message status")
	}

	logrus.WithFields(logrus.Fields{
		"sms_id":    msg.ID,
		"recipient": recipient,
		"status":    msg.Status,
	}).Info("Message processed")

	if s.hub != nil {
		s.hub.Broadcast(map[string]interface{}{"type": "sms." + strings.ToLower(msg.Status), "data": msg})
	}

	if sendErr != nil {
		return msg, fmt.Errorf("%w: %v", ErrDeliveryFailed, sendErr)
	}
	return msg, nil
}

// Receive records a message a LINE user sent to the school account and links
// it to the student registered under that LINE id, if any.
func (s *MessagingService) Receive(ctx context.Context, lineUserID, text string) (*models.SmsMessage, error) {
	text = strings.TrimSpace(text)
	if lineUserID == "" || text == "" {
		return nil, ErrEmptyMessage
	}
	studentID, err := s.store.StudentIDByLineID(ctx, lineUserID)
	if err != nil {
		return nil, fmt.Errorf("lookup student: %w", err)
	}
	now := s.now()
	msg := &models.SmsMessage{
		Direction: models.SmsInbound,
		StudentID: studentID,
		Recipient: lineUserID,
		Message:   text,
		Status:    models.SmsReceived,
		SentAt:    &now,
	}
	if err := s.store.CreateSms(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	logrus.WithFields(logrus.Fields{"sms_id": msg.ID, "from": lineUserID}).Info("Message received")

	if s.hub != nil {
		s.hub.Broadcast(map[string]interface{}{"type": "sms.received", "data": msg})
	}
	return msg, nil
}
