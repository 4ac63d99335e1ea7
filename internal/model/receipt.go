package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Receipt is a proof-of-purchase record the requester attaches after buying.
// Only the stored file URL is tracked here; upload and extraction live in a
// separate document service.
type Receipt struct {
	ID                uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PurchaseRequestID uuid.UUID        `gorm:"type:uuid;not null;index" json:"purchase_request_id"`
	PurchaseRequest   *PurchaseRequest `gorm:"foreignKey:PurchaseRequestID;constraint:OnDelete:CASCADE" json:"-"`
	FileURL           string           `gorm:"type:varchar(1024);not null" json:"file_url"`
	Vendor            string           `gorm:"type:varchar(255)" json:"vendor"`
	Note              string           `gorm:"type:text" json:"note"`
	UploadedByID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"uploaded_by_id"`
	UploadedBy        *User            `gorm:"foreignKey:UploadedByID" json:"uploaded_by,omitempty"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (r *Receipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
