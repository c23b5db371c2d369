package controllers

import (
	"errors"

	"musicschool_go/middleware"
	"musicschool_go/models"
	"musicschool_go/services"
	"musicschool_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SmsController struct {
	Resource[models.SmsMessage, *models.SmsMessage]
	messaging *services.MessagingService
}

func NewSmsController(messaging *services.MessagingService) *SmsController {
	return &SmsController{
		Resource: Resource[models.SmsMessage, *models.SmsMessage]{
			Label:   "Message",
			Filters: map[string]string{"student_id": "student_id", "status": "status", "recipient": "recipient", "direction": "direction"},
			Order:   "created_at DESC",
			Scope: func(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
				scope, err := dateRange(c, "created_at")
				if err != nil {
					return nil, err
				}
				return db.Scopes(scope), nil
			},
		},
		messaging: messaging,
	}
}

// SendSms stores and delivers a message to a student or raw recipient
func (sc *SmsController) SendSms(c *fiber.Ctx) error {
	var req services.SendRequest
	if ok, err := utils.BindAndValidate(c, &req); !ok {
		return err
	}

	msg, err := sc.messaging.Send(c.UserContext(), req)
	switch {
	case errors.Is(err, services.ErrMessagingDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong),
		errors.Is(err, services.ErrNoRecipient):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	case errors.Is(err, services.ErrDeliveryFailed):
		middleware.SetActivity(c, msg.ID, fiber.Map{"status": msg.Status})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   err.Error(),
			"message": msg,
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send message"})
	}

	middleware.SetActivity(c, msg.ID, fiber.Map{"recipient": msg.Recipient, "status": msg.Status})
	return c.Status(fiber.StatusCreated).JSON(msg)
}
