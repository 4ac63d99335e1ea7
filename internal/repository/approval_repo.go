package repository

import (
	"context"
	"errors"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RejectionOutcome describes what RecordRejection actually did.
type RejectionOutcome int

const (
	RejectionCreated RejectionOutcome = iota // no prior decision, REJECTED row inserted
	RejectionFlipped                         // prior APPROVED row overwritten to REJECTED
	RejectionNoop                            // prior decision was already REJECTED
)

// ApprovalRepository is the approval ledger: the append-mostly record of every
// decision per (request, approver, level). APPROVED rows are write-once; the
// composite unique index enforces that under concurrency.
type ApprovalRepository interface {
	Create(ctx context.Context, a *model.Approval) error
	HasApprovedDecision(ctx context.Context, prID, approverID uuid.UUID, level int) (bool, error)
	RecordRejection(ctx context.Context, prID, approverID uuid.UUID, level int) (*model.Approval, RejectionOutcome, error)
	ApprovedLevels(ctx context.Context, prID uuid.UUID) ([]int, error)
	LatestApproved(ctx context.Context, prID uuid.UUID) (*model.Approval, error)
	LatestApprovedByLevel(ctx context.Context, prID uuid.UUID) (*model.Approval, error)
	ListByRequest(ctx context.Context, prID uuid.UUID) ([]model.Approval, error)
	ListByApprover(ctx context.Context, approverID uuid.UUID, decision string) ([]model.Approval, error)
	HasDecisionByApprover(ctx context.Context, prID, approverID uuid.UUID) (bool, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, a *model.Approval) error {
	return GetDB(ctx, r.db).Create(a).Error
}

func (r *approvalRepository) HasApprovedDecision(ctx context.Context, prID, approverID uuid.UUID, level int) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Approval{}).
		Where("purchase_request_id = ? AND approver_id = ? AND level = ? AND decision = ?",
			prID, approverID, level, model.DecisionApproved).
		Count(&count).Error
	return count > 0, err
}

// RecordRejection upserts a REJECTED decision for (request, approver, level).
// Re-rejecting is a no-op; an existing APPROVED row at the triple is flipped.
func (r *approvalRepository) RecordRejection(ctx context.Context, prID, approverID uuid.UUID, level int) (*model.Approval, RejectionOutcome, error) {
	db := GetDB(ctx, r.db)

	var existing model.Approval
	err := db.Where("purchase_request_id = ? AND approver_id = ? AND level = ?", prID, approverID, level).
		First(&existing).Error
	switch {
	case err == nil:
		if existing.Decision == model.DecisionRejected {
			return &existing, RejectionNoop, nil
		}
		existing.Decision = model.DecisionRejected
		if err := db.Model(&existing).Update("decision", model.DecisionRejected).Error; err != nil {
			return nil, RejectionNoop, err
		}
		return &existing, RejectionFlipped, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		a := &model.Approval{
			PurchaseRequestID: prID,
			ApproverID:        approverID,
			Level:             level,
			Decision:          model.DecisionRejected,
		}
		if err := db.Create(a).Error; err != nil {
			return nil, RejectionNoop, err
		}
		return a, RejectionCreated, nil
	default:
		return nil, RejectionNoop, err
	}
}

func (r *approvalRepository) ApprovedLevels(ctx context.Context, prID uuid.UUID) ([]int, error) {
	var levels []int
	err := GetDB(ctx, r.db).Model(&model.Approval{}).
		Distinct("level").
		Where("purchase_request_id = ? AND decision = ?", prID, model.DecisionApproved).
		Order("level").
		Pluck("level", &levels).Error
	return levels, err
}

// LatestApproved returns the most recently created APPROVED decision.
func (r *approvalRepository) LatestApproved(ctx context.Context, prID uuid.UUID) (*model.Approval, error) {
	var a model.Approval
	err := GetDB(ctx, r.db).Preload("Approver").
		Where("purchase_request_id = ? AND decision = ?", prID, model.DecisionApproved).
		Order("created_at DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LatestApprovedByLevel returns the APPROVED decision at the highest level,
// breaking ties by most recent created_at. Used to pick the credited approver
// when none is supplied.
func (r *approvalRepository) LatestApprovedByLevel(ctx context.Context, prID uuid.UUID) (*model.Approval, error) {
	var a model.Approval
	err := GetDB(ctx, r.db).Preload("Approver").
		Where("purchase_request_id = ? AND decision = ?", prID, model.DecisionApproved).
		Order("level DESC").Order("created_at DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *approvalRepository) ListByRequest(ctx context.Context, prID uuid.UUID) ([]model.Approval, error) {
	var approvals []model.Approval
	err := GetDB(ctx, r.db).Preload("Approver").
		Where("purchase_request_id = ?", prID).
		Order("created_at ASC").
		Find(&approvals).Error
	return approvals, err
}

func (r *approvalRepository) ListByApprover(ctx context.Context, approverID uuid.UUID, decision string) ([]model.Approval, error) {
	var approvals []model.Approval
	err := GetDB(ctx, r.db).
		Preload("Approver").
		Preload("PurchaseRequest").
		Preload("PurchaseRequest.Items").
		Where("approver_id = ? AND decision = ?", approverID, decision).
		Order("created_at DESC").
		Find(&approvals).Error
	return approvals, err
}

func (r *approvalRepository) HasDecisionByApprover(ctx context.Context, prID, approverID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Approval{}).
		Where("purchase_request_id = ? AND approver_id = ?", prID, approverID).
		Count(&count).Error
	return count > 0, err
}
