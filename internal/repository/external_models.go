package repository

import "github.com/shopspring/decimal"

// The models below map tables owned by the policy-management system.
// They are read-only here and never migrated by this service.

type ReceiptModel struct {
	ID            string          `gorm:"type:varchar(64);primaryKey"`
	Number        string          `gorm:"type:varchar(64)"`
	CertificateID string          `gorm:"type:varchar(64);index"`
	ReceiptTypeID string          `gorm:"type:varchar(16)"`
	StartDate     string          `gorm:"type:varchar(20)"`
	EndDate       string          `gorm:"type:varchar(20)"`
	Status        string          `gorm:"type:varchar(30)"`
	Expired       bool            `gorm:"not null;default:false"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2)"`
}

func (ReceiptModel) TableName() string { return "receipts" }

type CertificateModel struct {
	ID        string `gorm:"type:varchar(64);primaryKey"`
	PolicyID  string `gorm:"type:varchar(64);index"`
	InsuredID string `gorm:"type:varchar(64)"`
}

func (CertificateModel) TableName() string { return "certificates" }

type PolicyModel struct {
	ID         string `gorm:"type:varchar(64);primaryKey"`
	Number     string `gorm:"type:varchar(64)"`
	PolicyType string `gorm:"type:varchar(1)"`
	IsGlobal   string `gorm:"type:varchar(1)"`
	HolderID   string `gorm:"type:varchar(64)"`
	BranchCode string `gorm:"type:varchar(16)"`
	InsurerID  string `gorm:"type:varchar(64)"`
	CompanyID  string `gorm:"type:varchar(32);index"`
}

func (PolicyModel) TableName() string { return "policies" }

type InsuredModel struct {
	ID       string `gorm:"type:varchar(64);primaryKey"`
	FullName string `gorm:"type:varchar(255)"`
	Mobile   string `gorm:"type:varchar(64)"`
	Email    string `gorm:"type:varchar(255)"`
}

func (InsuredModel) TableName() string { return "insureds" }

type BranchModel struct {
	Code string `gorm:"type:varchar(16);primaryKey"`
	Name string `gorm:"type:varchar(255)"`
}

func (BranchModel) TableName() string { return "branches" }

type InsurerModel struct {
	ID   string `gorm:"type:varchar(64);primaryKey"`
	Name string `gorm:"type:varchar(255)"`
}

func (InsurerModel) TableName() string { return "insurers" }

type ReceiptTypeModel struct {
	ID   string `gorm:"type:varchar(16);primaryKey"`
	Name string `gorm:"type:varchar(255)"`
}

func (ReceiptTypeModel) TableName() string { return "receipt_types" }

type CompanyModel struct {
	ID   string `gorm:"type:varchar(32);primaryKey"`
	Name string `gorm:"type:varchar(255)"`
}

func (CompanyModel) TableName() string { return "companies" }

// ExternalModels lists the read-only models, for test fixtures and local bootstrap.
func ExternalModels() []any {
	return []any{
		&ReceiptModel{},
		&CertificateModel{},
		&PolicyModel{},
		&InsuredModel{},
		&BranchModel{},
		&InsurerModel{},
		&ReceiptTypeModel{},
		&CompanyModel{},
	}
}
