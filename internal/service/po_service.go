package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"gorm.io/gorm"
)

const poNumberAttempts = 5

// POService generates uniquely numbered purchase orders from a request
// snapshot. It does NOT check whether the request already has a PO — that
// idempotency guard belongs to the orchestrator and the post-save reconciler.
type POService interface {
	Issue(ctx context.Context, pr *model.PurchaseRequest, creditedApprover *model.User) (*model.PurchaseOrder, error)
	BuildSnapshot(ctx context.Context, pr *model.PurchaseRequest, creditedApprover *model.User) (PurchaseOrderData, error)
}

type poService struct {
	db        *gorm.DB
	approvals repository.ApprovalRepository
	numberFn  func(pr *model.PurchaseRequest) string
}

func NewPOService(db *gorm.DB, approvals repository.ApprovalRepository) POService {
	return &poService{
		db:        db,
		approvals: approvals,
		numberFn:  generatePONumber,
	}
}

// BuildSnapshot freezes the request into the PO document. When no credited
// approver is supplied it falls back to the APPROVED decision at the highest
// level, breaking ties by the most recent created_at.
func (s *poService) BuildSnapshot(ctx context.Context, pr *model.PurchaseRequest, creditedApprover *model.User) (PurchaseOrderData, error) {
	data := PurchaseOrderData{
		PurchaseRequestID: pr.ID,
		Title:             pr.Title,
		Description:       pr.Description,
		TotalAmount:       pr.TotalAmount.StringFixed(2),
		CreatedAt:         pr.CreatedAt.Format(time.RFC3339),
		Items:             make([]PurchaseOrderItem, 0, len(pr.Items)),
	}
	for _, it := range pr.Items {
		data.Items = append(data.Items, PurchaseOrderItem{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}

	approver := creditedApprover
	if approver == nil {
		latest, err := s.approvals.LatestApprovedByLevel(ctx, pr.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return PurchaseOrderData{}, fmt.Errorf("resolve credited approver: %w", err)
		}
		if latest != nil {
			approver = latest.Approver
		}
	}
	data.Approver = buildApproverInfo(approver)

	return data, nil
}

// Issue builds the snapshot and persists the purchase order under the
// po_number uniqueness constraint, regenerating the number on collision for
// up to 5 attempts. Any other persistence failure is surfaced immediately
// without the retry wrapper. Every attempt runs in its own atomic unit (a
// savepoint when the caller already holds a transaction), so a failed
// attempt leaves no partial row.
func (s *poService) Issue(ctx context.Context, pr *model.PurchaseRequest, creditedApprover *model.User) (*model.PurchaseOrder, error) {
	data, err := s.BuildSnapshot(ctx, pr, creditedApprover)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal purchase order data: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= poNumberAttempts; attempt++ {
		prID := pr.ID
		po := &model.PurchaseOrder{
			PONumber:          s.numberFn(pr),
			Data:              string(raw),
			GeneratedAt:       time.Now(),
			PurchaseRequestID: &prID,
		}

		err := repository.GetDB(ctx, s.db).Transaction(func(tx *gorm.DB) error {
			return tx.Create(po).Error
		})
		if err == nil {
			log.Printf("purchase order created id=%s po_number=%s for pr=%s", po.ID, po.PONumber, pr.ID)
			return po, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Printf("po_number collision, retrying: %s", po.PONumber)
			lastErr = err
			continue
		}
		// not a numbering collision, surface immediately
		return nil, fmt.Errorf("create purchase order for request %s: %w", pr.ID, err)
	}

	return nil, fmt.Errorf("%w for request %s: %v", ErrIssuanceFailed, pr.ID, lastErr)
}

const poNumberCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generatePONumber yields PO-<request id>-<timestamp>-<6 random chars>.
func generatePONumber(pr *model.PurchaseRequest) string {
	ts := time.Now().Format("20060102150405")
	base := "PO-" + ts
	if pr != nil {
		base = fmt.Sprintf("PO-%s-%s", pr.ID, ts)
	}
	return base + "-" + randomString(6)
}

func randomString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		for i := range buf {
			buf[i] = poNumberCharset[(time.Now().Nanosecond()+i)%len(poNumberCharset)]
		}
		return string(buf)
	}
	for i := range buf {
		buf[i] = poNumberCharset[int(buf[i])%len(poNumberCharset)]
	}
	return string(buf)
}
