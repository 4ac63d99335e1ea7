package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseRequestSavedHook is invoked synchronously after every persisted
// save of a purchase request, inside the caller's transaction context when
// one is active. The created flag distinguishes inserts from updates.
type PurchaseRequestSavedHook interface {
	PurchaseRequestSaved(ctx context.Context, pr *model.PurchaseRequest, created bool)
}

type PurchaseRequestRepository interface {
	Create(ctx context.Context, pr *model.PurchaseRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	Save(ctx context.Context, pr *model.PurchaseRequest) error
	Delete(ctx context.Context, id uuid.UUID) error
	ReplaceItems(ctx context.Context, pr *model.PurchaseRequest, items []model.RequestItem) error
	ListByCreator(ctx context.Context, creatorID uuid.UUID, page, limit int) ([]model.PurchaseRequest, int64, error)
	ListByStatus(ctx context.Context, status string, page, limit int) ([]model.PurchaseRequest, int64, error)
	ListAll(ctx context.Context, page, limit int) ([]model.PurchaseRequest, int64, error)
	ListPendingForLevel(ctx context.Context, level int, excludeApproverID uuid.UUID, page, limit int) ([]model.PurchaseRequest, int64, error)
	SetSavedHook(h PurchaseRequestSavedHook)
}

type purchaseRequestRepository struct {
	db   *gorm.DB
	hook PurchaseRequestSavedHook
}

func NewPurchaseRequestRepository(db *gorm.DB) PurchaseRequestRepository {
	return &purchaseRequestRepository{db: db}
}

// SetSavedHook registers the post-save hook. Wired once at startup; not safe
// to swap while requests are in flight.
func (r *purchaseRequestRepository) SetSavedHook(h PurchaseRequestSavedHook) {
	r.hook = h
}

func (r *purchaseRequestRepository) fireSaved(ctx context.Context, pr *model.PurchaseRequest, created bool) {
	if r.hook != nil {
		r.hook.PurchaseRequestSaved(ctx, pr, created)
	}
}

func (r *purchaseRequestRepository) Create(ctx context.Context, pr *model.PurchaseRequest) error {
	if err := GetDB(ctx, r.db).Create(pr).Error; err != nil {
		return err
	}
	r.fireSaved(ctx, pr, true)
	return nil
}

func (r *purchaseRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var pr model.PurchaseRequest
	if err := GetDB(ctx, r.db).Preload("Items").First(&pr, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pr, nil
}

func (r *purchaseRequestRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var pr model.PurchaseRequest
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Preload("CreatedBy").
		Preload("PurchaseOrder").
		First(&pr, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pr, nil
}

// Save persists workflow-owned fields and fires the post-save hook. Session
// FullSaveAssociations stays off so item rows are managed only through
// ReplaceItems.
func (r *purchaseRequestRepository) Save(ctx context.Context, pr *model.PurchaseRequest) error {
	if err := GetDB(ctx, r.db).Omit("Items", "Approvals", "CreatedBy", "PurchaseOrder").Save(pr).Error; err != nil {
		return err
	}
	r.fireSaved(ctx, pr, false)
	return nil
}

func (r *purchaseRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.PurchaseRequest{}).Error
}

// ReplaceItems swaps the full item list in place and leaves pr.Items loaded
// with the new rows. Total recomputation is the service's job, synchronously
// after this call.
func (r *purchaseRequestRepository) ReplaceItems(ctx context.Context, pr *model.PurchaseRequest, items []model.RequestItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("purchase_request_id = ?", pr.ID).Delete(&model.RequestItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].PurchaseRequestID = pr.ID
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			return err
		}
	}
	pr.Items = items
	return nil
}

func (r *purchaseRequestRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID, page, limit int) ([]model.PurchaseRequest, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("created_by_id = ?", creatorID)
	}, page, limit)
}

func (r *purchaseRequestRepository) ListByStatus(ctx context.Context, status string, page, limit int) ([]model.PurchaseRequest, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", status)
	}, page, limit)
}

func (r *purchaseRequestRepository) ListAll(ctx context.Context, page, limit int) ([]model.PurchaseRequest, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB { return db }, page, limit)
}

// ListPendingForLevel returns PENDING requests waiting at the given level,
// excluding requests the approver has already decided on.
func (r *purchaseRequestRepository) ListPendingForLevel(ctx context.Context, level int, excludeApproverID uuid.UUID, page, limit int) ([]model.PurchaseRequest, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		acted := db.Session(&gorm.Session{NewDB: true}).
			Model(&model.Approval{}).
			Select("purchase_request_id").
			Where("approver_id = ?", excludeApproverID)
		return db.
			Where("status = ?", model.StatusPending).
			Where("current_approval_level = ?", level).
			Where("id NOT IN (?)", acted)
	}, page, limit)
}

func (r *purchaseRequestRepository) list(ctx context.Context, scope func(*gorm.DB) *gorm.DB, page, limit int) ([]model.PurchaseRequest, int64, error) {
	var requests []model.PurchaseRequest
	var total int64

	if err := scope(GetDB(ctx, r.db)).Model(&model.PurchaseRequest{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := scope(GetDB(ctx, r.db)).
		Preload("Items").
		Preload("CreatedBy").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
