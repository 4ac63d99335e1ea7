package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotOwner        = errors.New("only the creator can modify this request")
	ErrForbidden       = errors.New("role is not allowed to perform this action")
	ErrInvalidLevels   = errors.New("required_approval_levels outside the approval chain")
	ErrDeleteNotFinal  = errors.New("only APPROVED requests can be deleted")
	ErrReceiptNotOwner = errors.New("only the creator can attach receipts")
	ErrReceiptRejected = errors.New("cannot attach receipts to a rejected request")
)

// --- DTOs ---

type RequestItemInput struct {
	Name      string `json:"name" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	UnitPrice string `json:"unit_price" binding:"required"` // Decimal string
}

type CreatePurchaseRequestRequest struct {
	Title                  string             `json:"title" binding:"required"`
	Description            string             `json:"description"`
	RequiredApprovalLevels *int               `json:"required_approval_levels"`
	Items                  []RequestItemInput `json:"items" binding:"required,min=1,dive"`
}

type UpdatePurchaseRequestRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Items       []RequestItemInput `json:"items" binding:"omitempty,min=1,dive"`
}

type SubmitReceiptRequest struct {
	FileURL string `json:"file_url" binding:"required,url"`
	Vendor  string `json:"vendor"`
	Note    string `json:"note"`
}

type PurchaseRequestResponse struct {
	PurchaseRequestSnapshot
	CreatedBy       *ApproverInfo `json:"created_by,omitempty"`
	PurchaseOrderID *uuid.UUID    `json:"purchase_order_id,omitempty"`
	UpdatedAt       string        `json:"updated_at"`
}

type ApprovalResponse struct {
	ID                uuid.UUID     `json:"id"`
	PurchaseRequestID uuid.UUID     `json:"purchase_request_id"`
	Level             int           `json:"level"`
	Decision          string        `json:"decision"`
	Comment           string        `json:"comment,omitempty"`
	Approver          *ApproverInfo `json:"approver,omitempty"`
	CreatedAt         string        `json:"created_at"`
}

type DecisionResponse struct {
	ApprovalResponse
	PurchaseRequest *PurchaseRequestSnapshot `json:"purchase_request,omitempty"`
}

type ReceiptResponse struct {
	ID                uuid.UUID     `json:"id"`
	PurchaseRequestID uuid.UUID     `json:"purchase_request_id"`
	FileURL           string        `json:"file_url"`
	Vendor            string        `json:"vendor,omitempty"`
	Note              string        `json:"note,omitempty"`
	UploadedBy        *ApproverInfo `json:"uploaded_by,omitempty"`
	CreatedAt         string        `json:"created_at"`
}

// --- Interface ---

// PurchaseRequestService owns the request lifecycle outside the approval
// decisions themselves: creation, edits while PENDING, role-scoped listings
// and the receipt trail.
type PurchaseRequestService interface {
	Create(ctx context.Context, creator *model.User, req CreatePurchaseRequestRequest) (PurchaseRequestResponse, error)
	Update(ctx context.Context, actor *model.User, id uuid.UUID, req UpdatePurchaseRequestRequest) (PurchaseRequestResponse, error)
	Get(ctx context.Context, id uuid.UUID) (PurchaseRequestResponse, error)
	List(ctx context.Context, actor *model.User, page, limit int) ([]PurchaseRequestResponse, int64, error)
	ListPending(ctx context.Context, approver *model.User, page, limit int) ([]PurchaseRequestResponse, int64, error)
	Delete(ctx context.Context, actor *model.User, id uuid.UUID) error
	ListApprovals(ctx context.Context, id uuid.UUID) ([]ApprovalResponse, error)
	ListMyDecisions(ctx context.Context, approver *model.User, decision string) ([]DecisionResponse, error)
	SubmitReceipt(ctx context.Context, actor *model.User, id uuid.UUID, req SubmitReceiptRequest) (ReceiptResponse, error)
	ListReceipts(ctx context.Context, id uuid.UUID) ([]ReceiptResponse, error)
}

type purchaseRequestService struct {
	requests  repository.PurchaseRequestRepository
	approvals repository.ApprovalRepository
	receipts  repository.ReceiptRepository
	audit     repository.AuditRepository
	txManager repository.TransactionManager
	chain     ApprovalChain
}

func NewPurchaseRequestService(
	requests repository.PurchaseRequestRepository,
	approvals repository.ApprovalRepository,
	receipts repository.ReceiptRepository,
	audit repository.AuditRepository,
	txManager repository.TransactionManager,
	chain ApprovalChain,
) PurchaseRequestService {
	return &purchaseRequestService{
		requests:  requests,
		approvals: approvals,
		receipts:  receipts,
		audit:     audit,
		txManager: txManager,
		chain:     chain,
	}
}

// --- Implementation ---

func (s *purchaseRequestService) Create(ctx context.Context, creator *model.User, req CreatePurchaseRequestRequest) (PurchaseRequestResponse, error) {
	items, total, err := parseItems(req.Items)
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	required := model.DefaultRequiredApprovalLevels
	if req.RequiredApprovalLevels != nil {
		required = *req.RequiredApprovalLevels
	}
	if required < 1 || required > s.chain.MaxLevel() {
		return PurchaseRequestResponse{}, fmt.Errorf("%w: got %d, chain supports 1..%d",
			ErrInvalidLevels, required, s.chain.MaxLevel())
	}

	startLevel := 1
	pr := &model.PurchaseRequest{
		Title:                  req.Title,
		Description:            req.Description,
		TotalAmount:            total,
		Status:                 model.StatusPending,
		CreatedByID:            creator.ID,
		RequiredApprovalLevels: required,
		CurrentApprovalLevel:   &startLevel,
		Items:                  items,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.Create(txCtx, pr); err != nil {
			return err
		}
		s.logAudit(txCtx, creator, model.ActionCreateRequest, pr, map[string]any{
			"total_amount":             pr.TotalAmount.StringFixed(2),
			"required_approval_levels": required,
		})
		return nil
	})
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	pr.CreatedBy = creator
	return buildResponse(pr), nil
}

// Update lets the creator amend a PENDING request. Replacing the item list
// recomputes the total in the same transaction, so the invariant that the
// total equals the sum of line totals holds at commit.
func (s *purchaseRequestService) Update(ctx context.Context, actor *model.User, id uuid.UUID, req UpdatePurchaseRequestRequest) (PurchaseRequestResponse, error) {
	pr, err := s.requests.FindByIDWithRelations(ctx, id)
	if err != nil {
		return PurchaseRequestResponse{}, err
	}
	if pr.CreatedByID != actor.ID {
		return PurchaseRequestResponse{}, ErrNotOwner
	}
	if pr.Status != model.StatusPending {
		return PurchaseRequestResponse{}, ErrNotPending
	}

	var items []model.RequestItem
	var total decimal.Decimal
	if req.Items != nil {
		items, total, err = parseItems(req.Items)
		if err != nil {
			return PurchaseRequestResponse{}, err
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if req.Title != nil {
			pr.Title = *req.Title
		}
		if req.Description != nil {
			pr.Description = *req.Description
		}
		if req.Items != nil {
			if err := s.requests.ReplaceItems(txCtx, pr, items); err != nil {
				return err
			}
			pr.TotalAmount = total
		}
		if err := s.requests.Save(txCtx, pr); err != nil {
			return err
		}
		s.logAudit(txCtx, actor, model.ActionUpdateRequest, pr, map[string]any{
			"total_amount": pr.TotalAmount.StringFixed(2),
		})
		return nil
	})
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	return buildResponse(pr), nil
}

func (s *purchaseRequestService) Get(ctx context.Context, id uuid.UUID) (PurchaseRequestResponse, error) {
	pr, err := s.requests.FindByIDWithRelations(ctx, id)
	if err != nil {
		return PurchaseRequestResponse{}, err
	}
	return buildResponse(pr), nil
}

// List is role-scoped: staff see their own requests, approver roles see the
// PENDING queue, finance sees APPROVED, admin sees everything.
func (s *purchaseRequestService) List(ctx context.Context, actor *model.User, page, limit int) ([]PurchaseRequestResponse, int64, error) {
	var (
		requests []model.PurchaseRequest
		total    int64
		err      error
	)
	switch actor.Role {
	case model.RoleAdmin:
		requests, total, err = s.requests.ListAll(ctx, page, limit)
	case model.RoleFinance:
		requests, total, err = s.requests.ListByStatus(ctx, model.StatusApproved, page, limit)
	case model.RoleApprover1, model.RoleApprover2:
		requests, total, err = s.requests.ListByStatus(ctx, model.StatusPending, page, limit)
	default:
		requests, total, err = s.requests.ListByCreator(ctx, actor.ID, page, limit)
	}
	if err != nil {
		return nil, 0, err
	}
	return buildResponses(requests), total, nil
}

// ListPending is the approver work queue: PENDING requests waiting exactly at
// the caller's level, minus the ones the caller already decided on.
func (s *purchaseRequestService) ListPending(ctx context.Context, approver *model.User, page, limit int) ([]PurchaseRequestResponse, int64, error) {
	level, ok := s.chain.LevelForRole(approver.Role)
	if !ok {
		return nil, 0, ErrForbidden
	}
	requests, total, err := s.requests.ListPendingForLevel(ctx, level, approver.ID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return buildResponses(requests), total, nil
}

func (s *purchaseRequestService) Delete(ctx context.Context, actor *model.User, id uuid.UUID) error {
	if actor.Role != model.RoleFinance && actor.Role != model.RoleAdmin {
		return ErrForbidden
	}
	pr, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if pr.Status != model.StatusApproved {
		return ErrDeleteNotFinal
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.Delete(txCtx, id); err != nil {
			return err
		}
		s.logAudit(txCtx, actor, model.ActionDeleteRequest, pr, nil)
		return nil
	})
}

func (s *purchaseRequestService) ListApprovals(ctx context.Context, id uuid.UUID) ([]ApprovalResponse, error) {
	approvals, err := s.approvals.ListByRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]ApprovalResponse, 0, len(approvals))
	for i := range approvals {
		out = append(out, buildApprovalResponse(&approvals[i]))
	}
	return out, nil
}

func (s *purchaseRequestService) ListMyDecisions(ctx context.Context, approver *model.User, decision string) ([]DecisionResponse, error) {
	if decision != model.DecisionApproved && decision != model.DecisionRejected {
		return nil, fmt.Errorf("unknown decision %q", decision)
	}
	approvals, err := s.approvals.ListByApprover(ctx, approver.ID, decision)
	if err != nil {
		return nil, err
	}
	out := make([]DecisionResponse, 0, len(approvals))
	for i := range approvals {
		resp := DecisionResponse{ApprovalResponse: buildApprovalResponse(&approvals[i])}
		if approvals[i].PurchaseRequest != nil {
			snap := SnapshotPurchaseRequest(approvals[i].PurchaseRequest)
			resp.PurchaseRequest = &snap
		}
		out = append(out, resp)
	}
	return out, nil
}

func (s *purchaseRequestService) SubmitReceipt(ctx context.Context, actor *model.User, id uuid.UUID, req SubmitReceiptRequest) (ReceiptResponse, error) {
	pr, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return ReceiptResponse{}, err
	}
	if pr.CreatedByID != actor.ID && actor.Role != model.RoleAdmin {
		return ReceiptResponse{}, ErrReceiptNotOwner
	}
	if pr.Status == model.StatusRejected {
		return ReceiptResponse{}, ErrReceiptRejected
	}

	receipt := &model.Receipt{
		PurchaseRequestID: pr.ID,
		FileURL:           req.FileURL,
		Vendor:            req.Vendor,
		Note:              req.Note,
		UploadedByID:      actor.ID,
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.receipts.Create(txCtx, receipt); err != nil {
			return err
		}
		s.logAudit(txCtx, actor, model.ActionSubmitReceipt, pr, map[string]any{
			"file_url": req.FileURL,
			"vendor":   req.Vendor,
		})
		return nil
	})
	if err != nil {
		return ReceiptResponse{}, err
	}

	receipt.UploadedBy = actor
	return buildReceiptResponse(receipt), nil
}

func (s *purchaseRequestService) ListReceipts(ctx context.Context, id uuid.UUID) ([]ReceiptResponse, error) {
	receipts, err := s.receipts.ListByRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]ReceiptResponse, 0, len(receipts))
	for i := range receipts {
		out = append(out, buildReceiptResponse(&receipts[i]))
	}
	return out, nil
}

func (s *purchaseRequestService) logAudit(ctx context.Context, actor *model.User, action string, pr *model.PurchaseRequest, details map[string]any) {
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

// --- Helpers ---

func parseItems(inputs []RequestItemInput) ([]model.RequestItem, decimal.Decimal, error) {
	items := make([]model.RequestItem, 0, len(inputs))
	total := decimal.Zero
	for i, in := range inputs {
		price, err := decimal.NewFromString(in.UnitPrice)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("invalid unit_price for item %d: %w", i, err)
		}
		if price.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("unit_price for item %d must not be negative", i)
		}
		item := model.RequestItem{
			Name:      in.Name,
			Quantity:  in.Quantity,
			UnitPrice: price,
		}
		items = append(items, item)
		total = total.Add(item.LineTotal())
	}
	return items, total, nil
}

func buildResponse(pr *model.PurchaseRequest) PurchaseRequestResponse {
	resp := PurchaseRequestResponse{
		PurchaseRequestSnapshot: SnapshotPurchaseRequest(pr),
		CreatedBy:               buildApproverInfo(pr.CreatedBy),
		PurchaseOrderID:         pr.PurchaseOrderID,
		UpdatedAt:               pr.UpdatedAt.Format(time.RFC3339),
	}
	return resp
}

func buildResponses(requests []model.PurchaseRequest) []PurchaseRequestResponse {
	out := make([]PurchaseRequestResponse, 0, len(requests))
	for i := range requests {
		out = append(out, buildResponse(&requests[i]))
	}
	return out
}

func buildApprovalResponse(a *model.Approval) ApprovalResponse {
	return ApprovalResponse{
		ID:                a.ID,
		PurchaseRequestID: a.PurchaseRequestID,
		Level:             a.Level,
		Decision:          a.Decision,
		Comment:           a.Comment,
		Approver:          buildApproverInfo(a.Approver),
		CreatedAt:         a.CreatedAt.Format(time.RFC3339),
	}
}

func buildReceiptResponse(r *model.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ID:                r.ID,
		PurchaseRequestID: r.PurchaseRequestID,
		FileURL:           r.FileURL,
		Vendor:            r.Vendor,
		Note:              r.Note,
		UploadedBy:        buildApproverInfo(r.UploadedBy),
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
	}
}
