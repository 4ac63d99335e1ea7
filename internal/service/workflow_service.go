package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovePayload is the 200 response of a successful approval.
type ApprovePayload struct {
	Detail               string                  `json:"detail"`
	PurchaseRequestID    uuid.UUID               `json:"purchase_request_id"`
	ApprovedLevel        int                     `json:"approved_level"`
	ApprovedLevels       []int                   `json:"approved_levels"`
	CurrentApprovalLevel *int                    `json:"current_approval_level"`
	Status               string                  `json:"status"`
	PurchaseRequest      PurchaseRequestSnapshot `json:"purchase_request"`
	PurchaseOrderID      *uuid.UUID              `json:"purchase_order_id,omitempty"`
}

// RejectPayload is the 200 response of a rejection (or an idempotent re-reject).
type RejectPayload struct {
	Detail string `json:"detail"`
}

// ErrorPayload carries a machine-checkable detail code; the 500 path also
// includes the underlying error message.
type ErrorPayload struct {
	Detail        string `json:"detail"`
	Error         string `json:"error,omitempty"`
	ExpectedLevel *int   `json:"expected_level,omitempty"`
	YourLevel     *int   `json:"your_level,omitempty"`
}

// Broadcaster receives workflow events for fan-out to connected clients.
type Broadcaster interface {
	BroadcastEvent(event []byte)
}

// WorkflowService is the approve/reject entry point: it combines the approval
// ledger, the request state transitions and PO issuance inside one atomic
// operation per call and computes the (payload, HTTP status) pair.
type WorkflowService interface {
	Approve(ctx context.Context, approver *model.User, prID uuid.UUID, level int, comment string) (any, int)
	Reject(ctx context.Context, approver *model.User, prID uuid.UUID) (any, int)
	Chain() ApprovalChain
}

type workflowService struct {
	txManager repository.TransactionManager
	requests  repository.PurchaseRequestRepository
	approvals repository.ApprovalRepository
	audit     repository.AuditRepository
	issuer    POService
	chain     ApprovalChain
	hub       Broadcaster // optional
}

func NewWorkflowService(
	txManager repository.TransactionManager,
	requests repository.PurchaseRequestRepository,
	approvals repository.ApprovalRepository,
	audit repository.AuditRepository,
	issuer POService,
	chain ApprovalChain,
	hub Broadcaster,
) WorkflowService {
	return &workflowService{
		txManager: txManager,
		requests:  requests,
		approvals: approvals,
		audit:     audit,
		issuer:    issuer,
		chain:     chain,
		hub:       hub,
	}
}

func (s *workflowService) Chain() ApprovalChain {
	return s.chain
}

// Approve records an APPROVED decision for (request, approver, level) and
// advances or finalizes the request. On the final level the purchase order is
// issued in the same transaction, but an issuance failure is logged and
// swallowed: the approval still commits and the post-save reconciler is the
// retry path.
func (s *workflowService) Approve(ctx context.Context, approver *model.User, prID uuid.UUID, level int, comment string) (any, int) {
	pr, err := s.requests.FindByIDWithRelations(ctx, prID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrorPayload{Detail: "not_found"}, http.StatusNotFound
		}
		return ErrorPayload{Detail: "failed_create_approval", Error: err.Error()}, http.StatusInternalServerError
	}

	// Validation phase: nothing below mutates.
	if err := AssertEligibleForAction(pr); err != nil {
		return ErrorPayload{Detail: "only_pending_requests_can_be_approved"}, http.StatusBadRequest
	}
	if err := AssertNotFinalized(pr); err != nil {
		return ErrorPayload{Detail: "approval_already_finalized"}, http.StatusBadRequest
	}
	if err := AssertLevelMatch(pr, level); err != nil {
		var wrongTurn *WrongTurnError
		if errors.As(err, &wrongTurn) {
			return ErrorPayload{
				Detail:        "not_your_turn",
				ExpectedLevel: &wrongTurn.ExpectedLevel,
				YourLevel:     &wrongTurn.SuppliedLevel,
			}, http.StatusForbidden
		}
		return ErrorPayload{Detail: "not_your_turn"}, http.StatusForbidden
	}
	alreadyApproved, err := s.approvals.HasApprovedDecision(ctx, pr.ID, approver.ID, level)
	if err != nil {
		return ErrorPayload{Detail: "failed_create_approval", Error: err.Error()}, http.StatusInternalServerError
	}
	if alreadyApproved {
		return ErrorPayload{Detail: "already_approved_by_you"}, http.StatusBadRequest
	}

	var payload ApprovePayload
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		approval := &model.Approval{
			PurchaseRequestID: pr.ID,
			ApproverID:        approver.ID,
			Level:             level,
			Decision:          model.DecisionApproved,
			Comment:           comment,
		}
		if err := s.approvals.Create(txCtx, approval); err != nil {
			return err
		}

		var po *model.PurchaseOrder
		isFinal := Advance(pr, level)
		if isFinal && pr.PurchaseOrderID == nil {
			issued, issueErr := s.issuer.Issue(txCtx, pr, approver)
			if issueErr != nil {
				// The approval still commits; the reconciler retries later.
				log.Printf("approve: po issuance failed for pr=%s: %v", pr.ID, issueErr)
			} else {
				po = issued
				pr.PurchaseOrderID = &po.ID
			}
		}

		if err := s.requests.Save(txCtx, pr); err != nil {
			return err
		}

		approvedLevels, err := s.approvals.ApprovedLevels(txCtx, pr.ID)
		if err != nil {
			return err
		}

		s.writeAudit(txCtx, approver, model.ActionApproveRequest, pr, map[string]any{
			"level":  level,
			"status": pr.Status,
		})
		if po != nil {
			s.writeAudit(txCtx, approver, model.ActionIssuePO, pr, map[string]any{
				"po_number": po.PONumber,
				"po_id":     po.ID.String(),
			})
		}

		payload = ApprovePayload{
			Detail:               "approved",
			PurchaseRequestID:    pr.ID,
			ApprovedLevel:        level,
			ApprovedLevels:       approvedLevels,
			CurrentApprovalLevel: pr.CurrentApprovalLevel,
			Status:               pr.Status,
			PurchaseRequest:      SnapshotPurchaseRequest(pr),
		}
		if po != nil {
			poID := po.ID
			payload.PurchaseOrderID = &poID
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race on the (request, approver, level) unique index.
			return ErrorPayload{Detail: "already_approved_by_you"}, http.StatusBadRequest
		}
		log.Printf("approve: unexpected failure for pr=%s user=%s level=%d: %v", prID, approver.ID, level, err)
		return ErrorPayload{Detail: "failed_create_approval", Error: err.Error()}, http.StatusInternalServerError
	}

	s.broadcast("purchase_request.approved", pr, level)
	return payload, http.StatusOK
}

// Reject upserts a REJECTED decision at the request's current level and makes
// the request terminally REJECTED. Re-rejecting by the same approver is
// idempotent. The current approval level is left as-is; only final approval
// clears it.
func (s *workflowService) Reject(ctx context.Context, approver *model.User, prID uuid.UUID) (any, int) {
	pr, err := s.requests.FindByIDWithRelations(ctx, prID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrorPayload{Detail: "not_found"}, http.StatusNotFound
		}
		return ErrorPayload{Detail: "failed_reject_request", Error: err.Error()}, http.StatusInternalServerError
	}

	if pr.Status != model.StatusPending {
		return ErrorPayload{Detail: "Cannot reject, request not pending"}, http.StatusBadRequest
	}
	if pr.CurrentApprovalLevel == nil {
		return ErrorPayload{Detail: "approval_already_finalized"}, http.StatusBadRequest
	}
	level := *pr.CurrentApprovalLevel

	alreadyRejected := false
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		_, outcome, err := s.approvals.RecordRejection(txCtx, pr.ID, approver.ID, level)
		if err != nil {
			return err
		}
		if outcome == repository.RejectionNoop {
			alreadyRejected = true
			return nil
		}

		pr.Status = model.StatusRejected
		if err := s.requests.Save(txCtx, pr); err != nil {
			return err
		}

		s.writeAudit(txCtx, approver, model.ActionRejectRequest, pr, map[string]any{
			"level": level,
		})
		return nil
	})
	if err != nil {
		log.Printf("reject: unexpected failure for pr=%s user=%s: %v", prID, approver.ID, err)
		return ErrorPayload{Detail: "failed_reject_request", Error: err.Error()}, http.StatusInternalServerError
	}

	if alreadyRejected {
		return RejectPayload{Detail: "already_rejected"}, http.StatusOK
	}

	s.broadcast("purchase_request.rejected", pr, level)
	return RejectPayload{Detail: "Rejected"}, http.StatusOK
}

func (s *workflowService) writeAudit(ctx context.Context, actor *model.User, action string, pr *model.PurchaseRequest, details map[string]any) {
	raw, _ := json.Marshal(details)
	actorID := actor.ID
	entry := &model.AuditLog{
		UserID:     &actorID,
		Action:     action,
		EntityID:   pr.ID.String(),
		EntityName: pr.Title,
		Details:    string(raw),
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		log.Printf("audit: failed to record %s for pr=%s: %v", action, pr.ID, err)
	}
}

func (s *workflowService) broadcast(eventType string, pr *model.PurchaseRequest, level int) {
	if s.hub == nil {
		return
	}
	msg, err := json.Marshal(map[string]any{
		"type":                eventType,
		"purchase_request_id": pr.ID,
		"status":              pr.Status,
		"level":               level,
	})
	if err != nil {
		return
	}
	s.hub.BroadcastEvent(msg)
}
