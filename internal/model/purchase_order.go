package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseOrder is the artifact generated when a purchase request clears its
// final approval level. Data holds a frozen JSON snapshot of the request and
// the credited approver; PurchaseRequestID is the back-reference used for the
// at-most-one-PO-per-request idempotency check.
type PurchaseOrder struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PONumber          string     `gorm:"type:varchar(80);uniqueIndex;not null" json:"po_number"`
	Data              string     `gorm:"type:jsonb;not null" json:"data"`
	GeneratedAt       time.Time  `gorm:"not null" json:"generated_at"`
	PurchaseRequestID *uuid.UUID `gorm:"type:uuid;index" json:"purchase_request_id"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (po *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	return nil
}
