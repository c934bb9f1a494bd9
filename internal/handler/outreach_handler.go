package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/kursadbilgin/renewal-engine/internal/message"
	"github.com/kursadbilgin/renewal-engine/internal/service"
)

type OutreachService interface {
	SendWhatsApp(ctx context.Context, mode message.OutreachMode, contacts []message.Contact) (*service.OutreachResult, error)
	SendEmail(ctx context.Context, mode message.OutreachMode, contacts []message.Contact) (*service.OutreachResult, error)
}

type OutreachHandler struct {
	service OutreachService
}

func NewOutreachHandler(service OutreachService) (*OutreachHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("outreach service is required")
	}
	return &OutreachHandler{service: service}, nil
}

func RegisterOutreachRoutes(router fiber.Router, service OutreachService) error {
	h, err := NewOutreachHandler(service)
	if err != nil {
		return err
	}

	outreach := router.Group("/api/outreach")
	outreach.Post("/whatsapp", h.SendWhatsApp)
	outreach.Post("/email", h.SendEmail)

	return nil
}

type outreachRequest struct {
	Contacts []message.Contact `json:"contacts"`
}

type outreachItemResponse struct {
	Name      string `json:"name,omitempty"`
	To        string `json:"to,omitempty"`
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type outreachResponse struct {
	Mode      string                 `json:"mode"`
	Total     int                    `json:"total"`
	Attempted int                    `json:"attempted"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Items     []outreachItemResponse `json:"items"`
}

type outreachSendFunc func(ctx context.Context, mode message.OutreachMode, contacts []message.Contact) (*service.OutreachResult, error)

func (h *OutreachHandler) SendWhatsApp(c *fiber.Ctx) error {
	return h.send(c, h.service.SendWhatsApp)
}

func (h *OutreachHandler) SendEmail(c *fiber.Ctx) error {
	return h.send(c, h.service.SendEmail)
}

func (h *OutreachHandler) send(c *fiber.Ctx, send outreachSendFunc) error {
	mode, err := message.ParseOutreachMode(c.Query("mode"))
	if err != nil {
		return toHTTPError(err)
	}

	var req outreachRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	if len(req.Contacts) == 0 {
		return toHTTPError(fmt.Errorf("%w: contacts must not be empty", domain.ErrValidation))
	}

	result, err := send(c.UserContext(), mode, req.Contacts)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]outreachItemResponse, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, outreachItemResponse{
			Name:      item.Name,
			To:        item.To,
			Status:    item.Status,
			MessageID: item.MessageID,
			Error:     item.Error,
		})
	}

	return c.Status(fiber.StatusOK).JSON(outreachResponse{
		Mode:      result.Mode.String(),
		Total:     result.Total,
		Attempted: result.Attempted,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Items:     items,
	})
}
