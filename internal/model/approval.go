package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Approval decision enum constants
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// Approval is one decision record in the approval ledger. The composite
// unique index on (purchase_request_id, approver_id, level) is the only
// concurrency control against double decisions: under concurrent identical
// requests exactly one insert wins and the loser surfaces a duplicate-key
// error the orchestrator translates.
type Approval struct {
	ID                uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PurchaseRequestID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_approvals_request_approver_level" json:"purchase_request_id"`
	PurchaseRequest   *PurchaseRequest `gorm:"foreignKey:PurchaseRequestID" json:"-"`
	ApproverID        uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_approvals_request_approver_level" json:"approver_id"`
	Approver          *User            `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Level             int              `gorm:"not null;uniqueIndex:idx_approvals_request_approver_level" json:"level"`
	Decision          string           `gorm:"type:varchar(10);not null" json:"decision"`
	Comment           string           `gorm:"type:text" json:"comment"`
	CreatedAt         time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}

func (a *Approval) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
