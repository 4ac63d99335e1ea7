package service

import (
	"context"
	"errors"
	"log"

	"backend/internal/model"
	"backend/internal/repository"

	"gorm.io/gorm"
)

// POReconciler is the post-save safety net: if a purchase request is observed
// to reach APPROVED without a linked purchase order — the orchestrator's own
// issuance failed, or the status changed through another code path — it
// issues the missing PO and links it back. It runs synchronously inside the
// transaction that saved the request, and never raises out of the save path.
type POReconciler struct {
	requests  repository.PurchaseRequestRepository
	approvals repository.ApprovalRepository
	orders    repository.PurchaseOrderRepository
	issuer    POService
}

func NewPOReconciler(
	requests repository.PurchaseRequestRepository,
	approvals repository.ApprovalRepository,
	orders repository.PurchaseOrderRepository,
	issuer POService,
) *POReconciler {
	return &POReconciler{
		requests:  requests,
		approvals: approvals,
		orders:    orders,
		issuer:    issuer,
	}
}

// PurchaseRequestSaved implements repository.PurchaseRequestSavedHook.
func (r *POReconciler) PurchaseRequestSaved(ctx context.Context, pr *model.PurchaseRequest, created bool) {
	if created {
		return
	}
	if pr.Status != model.StatusApproved {
		return
	}
	if pr.PurchaseOrderID != nil {
		return
	}

	latest, err := r.approvals.LatestApproved(ctx, pr.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("po reconcile: load latest approval for pr=%s: %v", pr.ID, err)
		}
		return
	}
	if latest.Level != pr.RequiredApprovalLevels {
		return
	}

	exists, err := r.orders.ExistsForRequest(ctx, pr.ID)
	if err != nil {
		log.Printf("po reconcile: check existing po for pr=%s: %v", pr.ID, err)
		return
	}
	if exists {
		return
	}

	po, err := r.issuer.Issue(ctx, pr, latest.Approver)
	if err != nil {
		log.Printf("po reconcile: issue po for pr=%s: %v", pr.ID, err)
		return
	}

	pr.PurchaseOrderID = &po.ID
	if err := r.requests.Save(ctx, pr); err != nil {
		log.Printf("po reconcile: link po=%s to pr=%s: %v", po.ID, pr.ID, err)
	}
}
