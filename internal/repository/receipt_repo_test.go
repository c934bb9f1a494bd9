package repository

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func seedReceipts(t *testing.T, db *gorm.DB) {
	t.Helper()

	mustCreate(t, db,
		&CompanyModel{ID: "J-1", Name: "Acme Seguros"},
		&CompanyModel{ID: "J-2", Name: "Other Broker"},
		&BranchModel{Code: "AUTO", Name: "Automobile"},
		&BranchModel{Code: "HCM", Name: "Health"},
		&InsurerModel{ID: "ins-1", Name: "Mercantil"},
		&ReceiptTypeModel{ID: "R", Name: "Renewal"},
		&InsuredModel{ID: "holder", FullName: "Holder One", Mobile: "0414-111.11.11", Email: "holder@example.com"},
		&InsuredModel{ID: "member", FullName: "Certificate Member", Mobile: "04242222222", Email: "member@example.com"},
		&PolicyModel{ID: "p-ind", Number: "POL-IND", PolicyType: "I", IsGlobal: "N", HolderID: "holder", BranchCode: "AUTO", InsurerID: "ins-1", CompanyID: "J-1"},
		&PolicyModel{ID: "p-col", Number: "POL-COL", PolicyType: "C", IsGlobal: "N", HolderID: "holder", BranchCode: "AUTO", InsurerID: "ins-1", CompanyID: "J-1"},
		&PolicyModel{ID: "p-glob", Number: "POL-GLOB", PolicyType: "C", IsGlobal: "S", HolderID: "holder", BranchCode: "AUTO", InsurerID: "ins-1", CompanyID: "J-1"},
		&PolicyModel{ID: "p-hcm", Number: "POL-HCM", PolicyType: "I", IsGlobal: "N", HolderID: "holder", BranchCode: "HCM", InsurerID: "ins-1", CompanyID: "J-1"},
		&PolicyModel{ID: "p-other", Number: "POL-OTHER", PolicyType: "I", IsGlobal: "N", HolderID: "holder", BranchCode: "AUTO", InsurerID: "ins-1", CompanyID: "J-2"},
		&CertificateModel{ID: "c-ind", PolicyID: "p-ind", InsuredID: "member"},
		&CertificateModel{ID: "c-col", PolicyID: "p-col", InsuredID: "member"},
		&CertificateModel{ID: "c-glob", PolicyID: "p-glob", InsuredID: "member"},
		&CertificateModel{ID: "c-hcm", PolicyID: "p-hcm", InsuredID: "member"},
		&CertificateModel{ID: "c-other", PolicyID: "p-other", InsuredID: "member"},
		&ReceiptModel{ID: "r-ind", Number: "REC-1", CertificateID: "c-ind", ReceiptTypeID: "R", StartDate: "05/03/2026", EndDate: "05/03/2027", Status: "Pending", Amount: decimal.RequireFromString("150.50")},
		&ReceiptModel{ID: "r-col", Number: "REC-2", CertificateID: "c-col", ReceiptTypeID: "R", StartDate: "06-03-2026", Status: "Pending"},
		&ReceiptModel{ID: "r-glob", Number: "REC-3", CertificateID: "c-glob", ReceiptTypeID: "R", StartDate: "07/03/2026", Status: "Pending"},
		&ReceiptModel{ID: "r-hcm", Number: "REC-4", CertificateID: "c-hcm", StartDate: "07/03/2026", Status: "Pending"},
		&ReceiptModel{ID: "r-other", Number: "REC-5", CertificateID: "c-other", StartDate: "07/03/2026", Status: "Pending"},
		&ReceiptModel{ID: "r-paid", Number: "REC-6", CertificateID: "c-ind", StartDate: "07/03/2026", Status: "Paid"},
		&ReceiptModel{ID: "r-expired", Number: "REC-7", CertificateID: "c-ind", StartDate: "07/03/2026", Status: "Pending", Expired: true},
		&ReceiptModel{ID: "r-nodate", Number: "REC-8", CertificateID: "c-ind", StartDate: "", Status: "Pending"},
		&ReceiptModel{ID: "r-nan", Number: "REC-9", CertificateID: "c-ind", StartDate: "NaN/NaN/NaN", Status: "Pending"},
		&NotificationAttemptModel{
			ReceiptID:      "r-ind",
			Channel:        domain.ChannelWhatsApp,
			SentAt:         time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC),
			Attempt:        2,
			DeliveryStatus: domain.DeliveryStatusSent,
		},
		&NotificationAttemptModel{
			ReceiptID:      "r-col",
			Channel:        domain.ChannelEmail,
			SentAt:         time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC),
			Attempt:        4,
			DeliveryStatus: domain.DeliveryStatusSent,
		},
	)
}

func TestGormReceiptRepoListCandidates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedReceipts(t, db)
	repo := NewGormReceiptRepo(db)

	receipts, err := repo.ListCandidates(context.Background(), ReceiptFilter{
		PendingStatus:      "Pending",
		ExcludedBranchCode: "HCM",
		AllowedCompanies:   []string{"J-1", "J-9"},
	})
	if err != nil {
		t.Fatalf("ListCandidates() error = %v", err)
	}

	sort.Slice(receipts, func(i, j int) bool { return receipts[i].ID < receipts[j].ID })
	gotIDs := make([]string, 0, len(receipts))
	for _, r := range receipts {
		gotIDs = append(gotIDs, r.ID)
	}
	wantIDs := []string{"r-col", "r-glob", "r-ind"}
	if len(gotIDs) != len(wantIDs) {
		t.Fatalf("ids = %v, want %v", gotIDs, wantIDs)
	}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Fatalf("ids = %v, want %v", gotIDs, wantIDs)
		}
	}

	byID := make(map[string]domain.Receipt, len(receipts))
	for _, r := range receipts {
		byID[r.ID] = r
	}

	ind := byID["r-ind"]
	if ind.ClientName != "Holder One" || ind.RawPhone != "0414-111.11.11" {
		t.Fatalf("individual policy contact = %q/%q, want holder", ind.ClientName, ind.RawPhone)
	}
	if ind.LastAttempt == nil || ind.LastAttempt.Attempt != 2 {
		t.Fatalf("individual LastAttempt = %+v, want attempt 2", ind.LastAttempt)
	}
	if !ind.Amount.Equal(decimal.RequireFromString("150.50")) {
		t.Fatalf("Amount = %s, want 150.50", ind.Amount)
	}
	if ind.CompanyName != "Acme Seguros" || ind.BranchName != "Automobile" || ind.InsurerName != "Mercantil" || ind.ReceiptType != "Renewal" {
		t.Fatalf("joined names = %+v", ind)
	}

	col := byID["r-col"]
	if col.ClientName != "Certificate Member" || col.Email != "member@example.com" {
		t.Fatalf("collective policy contact = %q/%q, want certificate member", col.ClientName, col.Email)
	}
	if col.LastAttempt != nil {
		t.Fatalf("collective LastAttempt = %+v, want nil because only email was attempted", col.LastAttempt)
	}

	glob := byID["r-glob"]
	if glob.ClientName != "Holder One" {
		t.Fatalf("global collective policy contact = %q, want holder", glob.ClientName)
	}
}

func TestGormReceiptRepoListCandidatesCompanyFilter(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedReceipts(t, db)
	repo := NewGormReceiptRepo(db)

	receipts, err := repo.ListCandidates(context.Background(), ReceiptFilter{
		PendingStatus:      "Pending",
		ExcludedBranchCode: "HCM",
		AllowedCompanies:   []string{"J-1"},
		CompanyID:          "J-2",
	})
	if err != nil {
		t.Fatalf("ListCandidates() error = %v", err)
	}
	if len(receipts) != 0 {
		t.Fatalf("len(receipts) = %d, want 0 for a company outside the allow-list", len(receipts))
	}

	if _, err := repo.ListCandidates(context.Background(), ReceiptFilter{PendingStatus: "Pending"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ListCandidates() error = %v, want ErrValidation for empty allow-list", err)
	}
}
