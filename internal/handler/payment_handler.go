package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/kursadbilgin/renewal-engine/internal/service"
	"github.com/shopspring/decimal"
)

type PaymentService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*service.CreatedOrder, error)
	CaptureOrder(ctx context.Context, companyID string, orderID string) (*service.CaptureResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) (*service.WebhookResult, error)
	History(ctx context.Context, companyID string) ([]domain.PaymentTransaction, error)
	Balance(ctx context.Context, companyID string) (domain.Balance, error)
}

type PaymentHandler struct {
	service PaymentService
}

func NewPaymentHandler(service PaymentService) (*PaymentHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("payment service is required")
	}
	return &PaymentHandler{service: service}, nil
}

func RegisterPaymentRoutes(router fiber.Router, service PaymentService) error {
	h, err := NewPaymentHandler(service)
	if err != nil {
		return err
	}

	payments := router.Group("/api/payments")
	payments.Post("/orders", h.CreateOrder)
	payments.Post("/orders/:id/cancel", h.CancelOrder)
	payments.Post("/capture", h.CaptureOrder)
	payments.Post("/webhook", h.Webhook)
	payments.Get("/:companyId/history", h.History)
	payments.Get("/:companyId/balance", h.Balance)

	return nil
}

type createOrderRequest struct {
	CompanyID string          `json:"companyId"`
	Amount    decimal.Decimal `json:"amount"`
	ReturnURL string          `json:"returnUrl"`
	CancelURL string          `json:"cancelUrl"`
}

type createOrderResponse struct {
	OrderID     string `json:"orderId"`
	ApprovalURL string `json:"approvalUrl"`
}

type captureOrderRequest struct {
	OrderID   string `json:"orderId"`
	CompanyID string `json:"companyId"`
}

type captureResponse struct {
	Status           string `json:"status"`
	TransactionID    string `json:"transactionId,omitempty"`
	Amount           string `json:"amount"`
	CreditedMessages int64  `json:"creditedMessages"`
	Duplicated       bool   `json:"duplicated"`
}

type transactionResponse struct {
	TransactionID    string    `json:"transactionId"`
	Amount           string    `json:"amount"`
	CreditedMessages int64     `json:"creditedMessages"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
}

type historyResponse struct {
	CompanyID string                `json:"companyId"`
	Total     int                   `json:"total"`
	Data      []transactionResponse `json:"data"`
}

type balanceResponse struct {
	CompanyID string     `json:"companyId"`
	Available int64      `json:"available"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func (h *PaymentHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	order, err := h.service.CreateOrder(c.UserContext(), service.CreateOrderInput{
		CompanyID: req.CompanyID,
		Amount:    req.Amount,
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(createOrderResponse{
		OrderID:     order.OrderID,
		ApprovalURL: order.ApprovalURL,
	})
}

func (h *PaymentHandler) CaptureOrder(c *fiber.Ctx) error {
	var req captureOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	result, err := h.service.CaptureOrder(c.UserContext(), req.CompanyID, req.OrderID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toCaptureResponse(result))
}

func (h *PaymentHandler) CancelOrder(c *fiber.Ctx) error {
	orderID := strings.TrimSpace(c.Params("id"))
	if err := h.service.CancelOrder(c.UserContext(), orderID); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"orderId": orderID,
		"status":  domain.OrderStatusAbandoned.String(),
	})
}

// Webhook answers 200 for unverified and ignored notifications too. Only
// malformed bodies and internal failures are reported as errors.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	headers := make(http.Header)
	for key, values := range c.GetReqHeaders() {
		for _, v := range values {
			headers.Add(key, v)
		}
	}
	body := append([]byte(nil), c.Body()...)

	result, err := h.service.HandleWebhook(c.UserContext(), headers, body)
	if err != nil {
		return toHTTPError(err)
	}

	resp := fiber.Map{"outcome": result.Outcome}
	if result.Capture != nil {
		resp["capture"] = toCaptureResponse(result.Capture)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *PaymentHandler) History(c *fiber.Ctx) error {
	companyID := strings.TrimSpace(c.Params("companyId"))
	history, err := h.service.History(c.UserContext(), companyID)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]transactionResponse, 0, len(history))
	for _, txn := range history {
		data = append(data, transactionResponse{
			TransactionID:    txn.TransactionID,
			Amount:           txn.Amount.StringFixed(2),
			CreditedMessages: txn.CreditedMessages,
			Status:           txn.Status,
			CreatedAt:        txn.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(historyResponse{CompanyID: companyID, Total: len(data), Data: data})
}

func (h *PaymentHandler) Balance(c *fiber.Ctx) error {
	balance, err := h.service.Balance(c.UserContext(), strings.TrimSpace(c.Params("companyId")))
	if err != nil {
		return toHTTPError(err)
	}

	resp := balanceResponse{CompanyID: balance.CompanyID, Available: balance.Available}
	if !balance.UpdatedAt.IsZero() {
		resp.UpdatedAt = &balance.UpdatedAt
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func toCaptureResponse(r *service.CaptureResult) captureResponse {
	return captureResponse{
		Status:           r.Status,
		TransactionID:    r.TransactionID,
		Amount:           r.Amount.StringFixed(2),
		CreditedMessages: r.CreditedMessages,
		Duplicated:       r.Duplicated,
	}
}
