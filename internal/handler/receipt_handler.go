package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/kursadbilgin/renewal-engine/internal/service"
)

type ReceiptService interface {
	ListExpiring(ctx context.Context) ([]domain.Receipt, error)
	Scheduled(ctx context.Context, companyID string) (*service.ScheduledResult, error)
	RunBatch(ctx context.Context) (*service.BatchResult, error)
	NotifyIndividual(ctx context.Context, requests []service.IndividualRequest) ([]service.IndividualResult, error)
}

type ReceiptHandler struct {
	service ReceiptService
}

func NewReceiptHandler(service ReceiptService) (*ReceiptHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("receipt service is required")
	}
	return &ReceiptHandler{service: service}, nil
}

func RegisterReceiptRoutes(router fiber.Router, service ReceiptService) error {
	h, err := NewReceiptHandler(service)
	if err != nil {
		return err
	}

	receipts := router.Group("/api/receipts")
	receipts.Get("/", h.ListExpiring)
	receipts.Get("/scheduled", h.Scheduled)
	receipts.Post("/notify", h.RunBatch)
	receipts.Post("/notifications", h.NotifyIndividual)

	return nil
}

type receiptResponse struct {
	ID           string  `json:"id"`
	Number       string  `json:"number"`
	StartDate    string  `json:"startDate"`
	EndDate      string  `json:"endDate"`
	Status       string  `json:"status"`
	Amount       string  `json:"amount"`
	ReceiptType  string  `json:"receiptType"`
	PolicyNumber string  `json:"policyNumber"`
	BranchCode   string  `json:"branchCode"`
	BranchName   string  `json:"branchName"`
	InsurerName  string  `json:"insurerName"`
	CompanyID    string  `json:"companyId"`
	CompanyName  string  `json:"companyName"`
	ClientName   string  `json:"clientName"`
	Phone        *string `json:"phone"`
	Email        string  `json:"email,omitempty"`
}

type listReceiptsResponse struct {
	Total int               `json:"total"`
	Data  []receiptResponse `json:"data"`
}

type scheduledItemResponse struct {
	receiptResponse
	Placeholders map[string]string `json:"placeholders"`
}

type scheduledResponse struct {
	Omitted int                     `json:"omitted"`
	Total   int                     `json:"total"`
	Data    []scheduledItemResponse `json:"data"`
}

type batchItemResponse struct {
	ReceiptID string `json:"receiptId"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type batchResponse struct {
	Sent    int                 `json:"sent"`
	Omitted int                 `json:"omitted"`
	Total   int                 `json:"total"`
	Items   []batchItemResponse `json:"items"`
}

type individualNotificationRequest struct {
	ReceiptID     string            `json:"receiptId"`
	Phone         string            `json:"phone"`
	Placeholders  map[string]string `json:"placeholders"`
	ReceiptStatus string            `json:"receiptStatus"`
}

type individualNotificationResponse struct {
	ReceiptID      string `json:"receiptId"`
	DeliveryStatus string `json:"deliveryStatus"`
	MessageID      string `json:"messageId,omitempty"`
	Error          string `json:"error,omitempty"`
}

func (h *ReceiptHandler) ListExpiring(c *fiber.Ctx) error {
	receipts, err := h.service.ListExpiring(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]receiptResponse, 0, len(receipts))
	for i := range receipts {
		data = append(data, toReceiptResponse(&receipts[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listReceiptsResponse{Total: len(data), Data: data})
}

func (h *ReceiptHandler) Scheduled(c *fiber.Ctx) error {
	result, err := h.service.Scheduled(c.UserContext(), strings.TrimSpace(c.Query("companyId")))
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]scheduledItemResponse, 0, len(result.Items))
	for i := range result.Items {
		item := &result.Items[i]
		data = append(data, scheduledItemResponse{
			receiptResponse: toReceiptResponse(&item.Receipt),
			Placeholders:    item.Placeholders,
		})
	}

	return c.Status(fiber.StatusOK).JSON(scheduledResponse{
		Omitted: result.Omitted,
		Total:   result.Total,
		Data:    data,
	})
}

func (h *ReceiptHandler) RunBatch(c *fiber.Ctx) error {
	result, err := h.service.RunBatch(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]batchItemResponse, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, batchItemResponse{
			ReceiptID: item.ReceiptID,
			Status:    item.Status,
			Reason:    item.Reason,
			MessageID: item.MessageID,
			Error:     item.Error,
		})
	}

	return c.Status(fiber.StatusOK).JSON(batchResponse{
		Sent:    result.Sent,
		Omitted: result.Omitted,
		Total:   result.Total,
		Items:   items,
	})
}

// NotifyIndividual accepts the JSON array the frontend builds from the scheduled list.
func (h *ReceiptHandler) NotifyIndividual(c *fiber.Ctx) error {
	var req []individualNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "request body must be a non-empty array of receipts")
	}
	if len(req) == 0 {
		return toHTTPError(fmt.Errorf("%w: request body must be a non-empty array of receipts", domain.ErrValidation))
	}

	requests := make([]service.IndividualRequest, 0, len(req))
	for _, item := range req {
		requests = append(requests, service.IndividualRequest{
			ReceiptID:     strings.TrimSpace(item.ReceiptID),
			Phone:         item.Phone,
			Placeholders:  item.Placeholders,
			ReceiptStatus: strings.TrimSpace(item.ReceiptStatus),
		})
	}

	results, err := h.service.NotifyIndividual(c.UserContext(), requests)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]individualNotificationResponse, 0, len(results))
	for _, r := range results {
		data = append(data, individualNotificationResponse{
			ReceiptID:      r.ReceiptID,
			DeliveryStatus: r.DeliveryStatus.String(),
			MessageID:      r.MessageID,
			Error:          r.Error,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func toReceiptResponse(r *domain.Receipt) receiptResponse {
	resp := receiptResponse{
		ID:           r.ID,
		Number:       r.Number,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		Status:       r.Status,
		ReceiptType:  r.ReceiptType,
		PolicyNumber: r.PolicyNumber,
		BranchCode:   r.BranchCode,
		BranchName:   r.BranchName,
		InsurerName:  r.InsurerName,
		CompanyID:    r.CompanyID,
		CompanyName:  r.CompanyName,
		ClientName:   r.ClientName,
		Phone:        r.Phone,
		Email:        r.Email,
	}
	if !r.Amount.IsZero() {
		resp.Amount = r.Amount.StringFixed(2)
	}
	return resp
}
