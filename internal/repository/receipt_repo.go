package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReceiptRepository interface {
	Create(ctx context.Context, receipt *model.Receipt) error
	ListByRequest(ctx context.Context, prID uuid.UUID) ([]model.Receipt, error)
}

type receiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) Create(ctx context.Context, receipt *model.Receipt) error {
	return GetDB(ctx, r.db).Create(receipt).Error
}

func (r *receiptRepository) ListByRequest(ctx context.Context, prID uuid.UUID) ([]model.Receipt, error) {
	var receipts []model.Receipt
	err := GetDB(ctx, r.db).Preload("UploadedBy").
		Where("purchase_request_id = ?", prID).
		Order("created_at DESC").
		Find(&receipts).Error
	return receipts, err
}
