package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReceiptFilter holds the storage-side predicates of the expiry selection.
type ReceiptFilter struct {
	PendingStatus      string
	ExcludedBranchCode string
	AllowedCompanies   []string
	CompanyID          string
}

type ReceiptRepository interface {
	ListCandidates(ctx context.Context, filter ReceiptFilter) ([]domain.Receipt, error)
}

type GormReceiptRepo struct {
	db *gorm.DB
}

func NewGormReceiptRepo(db *gorm.DB) *GormReceiptRepo {
	return &GormReceiptRepo{db: db}
}

type receiptRow struct {
	ReceiptID          string              `gorm:"column:receipt_id"`
	ReceiptNumber      string              `gorm:"column:receipt_number"`
	StartDate          string              `gorm:"column:start_date"`
	EndDate            string              `gorm:"column:end_date"`
	Status             string              `gorm:"column:status"`
	Amount             decimal.NullDecimal `gorm:"column:amount"`
	ReceiptType        *string             `gorm:"column:receipt_type"`
	PolicyNumber       string              `gorm:"column:policy_number"`
	BranchCode         string              `gorm:"column:branch_code"`
	BranchName         *string             `gorm:"column:branch_name"`
	InsurerName        *string             `gorm:"column:insurer_name"`
	CompanyID          string              `gorm:"column:company_id"`
	CompanyName        *string             `gorm:"column:company_name"`
	ClientName         *string             `gorm:"column:client_name"`
	RawPhone           *string             `gorm:"column:raw_phone"`
	Email              *string             `gorm:"column:email"`
	LastAttempt        *int                `gorm:"column:last_attempt"`
	LastSentAt         *time.Time          `gorm:"column:last_sent_at"`
	LastDeliveryStatus *string             `gorm:"column:last_delivery_status"`
}

// contactColumn resolves a contact attribute from the policy holder for
// individual policies, from the certificate insured for non-global collective
// policies, and from the holder otherwise.
func contactColumn(column string, alias string) string {
	return fmt.Sprintf(`CASE
		WHEN p.policy_type = '%[3]s' THEN h.%[1]s
		WHEN p.policy_type = '%[4]s' AND p.is_global = '%[5]s' THEN ci.%[1]s
		ELSE h.%[1]s
	END AS %[2]s`, column, alias, domain.PolicyTypeIndividual, domain.PolicyTypeCollective, domain.GlobalFlagNo)
}

var candidateSelect = strings.Join([]string{
	"r.id AS receipt_id",
	"r.number AS receipt_number",
	"r.start_date AS start_date",
	"r.end_date AS end_date",
	"r.status AS status",
	"r.amount AS amount",
	"rt.name AS receipt_type",
	"p.number AS policy_number",
	"p.branch_code AS branch_code",
	"b.name AS branch_name",
	"ins.name AS insurer_name",
	"p.company_id AS company_id",
	"c.name AS company_name",
	contactColumn("full_name", "client_name"),
	contactColumn("mobile", "raw_phone"),
	contactColumn("email", "email"),
	"na.attempt AS last_attempt",
	"na.sent_at AS last_sent_at",
	"na.delivery_status AS last_delivery_status",
}, ",\n\t")

const candidateFrom = `
FROM receipts r
JOIN certificates cert ON cert.id = r.certificate_id
JOIN policies p ON p.id = cert.policy_id
LEFT JOIN insureds h ON h.id = p.holder_id
LEFT JOIN insureds ci ON ci.id = cert.insured_id
LEFT JOIN branches b ON b.code = p.branch_code
LEFT JOIN insurers ins ON ins.id = p.insurer_id
LEFT JOIN receipt_types rt ON rt.id = r.receipt_type_id
LEFT JOIN companies c ON c.id = p.company_id
LEFT JOIN notification_attempts na ON na.receipt_id = r.id AND na.channel = ?
WHERE r.status = ?
	AND r.expired = ?
	AND p.branch_code <> ?
	AND r.start_date IS NOT NULL
	AND r.start_date <> ''
	AND r.start_date NOT IN ('NaN/NaN/NaN', 'Invalid date')
	AND p.company_id IN ?`

// ListCandidates returns pending receipts of allowed companies with resolved
// contact data. Start-date parsing and the expiry window are applied by the caller.
func (r *GormReceiptRepo) ListCandidates(ctx context.Context, filter ReceiptFilter) ([]domain.Receipt, error) {
	if len(filter.AllowedCompanies) == 0 {
		return nil, fmt.Errorf("%w: at least one allowed company is required", domain.ErrValidation)
	}

	query := "SELECT " + candidateSelect + candidateFrom
	args := []any{
		domain.ChannelWhatsApp.String(),
		filter.PendingStatus,
		false,
		filter.ExcludedBranchCode,
		filter.AllowedCompanies,
	}
	if companyID := strings.TrimSpace(filter.CompanyID); companyID != "" {
		query += "\n\tAND p.company_id = ?"
		args = append(args, companyID)
	}

	var rows []receiptRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list receipt candidates: %w", domain.ErrStorage, err)
	}

	receipts := make([]domain.Receipt, 0, len(rows))
	for i := range rows {
		receipts = append(receipts, receiptRowToDomain(&rows[i]))
	}
	return receipts, nil
}

func receiptRowToDomain(row *receiptRow) domain.Receipt {
	receipt := domain.Receipt{
		ID:           row.ReceiptID,
		Number:       row.ReceiptNumber,
		StartDate:    row.StartDate,
		EndDate:      row.EndDate,
		Status:       row.Status,
		ReceiptType:  deref(row.ReceiptType),
		PolicyNumber: row.PolicyNumber,
		BranchCode:   row.BranchCode,
		BranchName:   deref(row.BranchName),
		InsurerName:  deref(row.InsurerName),
		CompanyID:    row.CompanyID,
		CompanyName:  deref(row.CompanyName),
		ClientName:   strings.TrimSpace(deref(row.ClientName)),
		RawPhone:     deref(row.RawPhone),
		Email:        strings.TrimSpace(deref(row.Email)),
	}
	if row.Amount.Valid {
		receipt.Amount = row.Amount.Decimal
	}

	if row.LastAttempt != nil {
		receipt.LastAttempt = &domain.AttemptRecord{
			ReceiptID:      row.ReceiptID,
			Channel:        domain.ChannelWhatsApp,
			Attempt:        *row.LastAttempt,
			LastSentAt:     row.LastSentAt,
			DeliveryStatus: domain.DeliveryStatus(deref(row.LastDeliveryStatus)),
		}
	}

	return receipt
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
