package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseRequest status enum constants
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// DefaultRequiredApprovalLevels is the number of sequential approvals a new
// request needs unless the creator says otherwise.
const DefaultRequiredApprovalLevels = 2

// PurchaseRequest is the approvable document. It walks a fixed ordinal chain
// of approval levels; CurrentApprovalLevel is nil once the request has been
// finalized (APPROVED or, for approvals, past the last level).
//
// Invariant: Status == PENDING iff CurrentApprovalLevel is non-nil.
type PurchaseRequest struct {
	ID                     uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title                  string          `gorm:"type:varchar(255);not null" json:"title"`
	Description            string          `gorm:"type:text" json:"description"`
	TotalAmount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"` // Always the sum of item line totals
	Status                 string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	CreatedByID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"created_by_id"`
	CreatedBy              *User           `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	RequiredApprovalLevels int             `gorm:"not null;default:2" json:"required_approval_levels"`
	CurrentApprovalLevel   *int            `json:"current_approval_level"` // nil => finalized
	PurchaseOrderID        *uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"purchase_order_id"`
	PurchaseOrder          *PurchaseOrder  `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:SET NULL" json:"purchase_order,omitempty"`
	Items                  []RequestItem   `gorm:"foreignKey:PurchaseRequestID;constraint:OnDelete:CASCADE" json:"items"`
	Approvals              []Approval      `gorm:"foreignKey:PurchaseRequestID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (pr *PurchaseRequest) BeforeCreate(tx *gorm.DB) error {
	if pr.ID == uuid.Nil {
		pr.ID = uuid.New()
	}
	return nil
}

// RequestItem is a single line of a purchase request.
type RequestItem struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PurchaseRequestID uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_request_id"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	Quantity          int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
}

func (it *RequestItem) BeforeCreate(tx *gorm.DB) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	return nil
}

// LineTotal is quantity x unit price.
func (it *RequestItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}
