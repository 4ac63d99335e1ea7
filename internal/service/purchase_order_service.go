package service

import (
	"context"
	"encoding/json"
	"time"

	"backend/internal/repository"

	"github.com/google/uuid"
)

type PurchaseOrderResponse struct {
	ID                uuid.UUID       `json:"id"`
	PONumber          string          `json:"po_number"`
	PurchaseRequestID *uuid.UUID      `json:"purchase_request_id"`
	Data              json.RawMessage `json:"data"`
	GeneratedAt       string          `json:"generated_at"`
}

// PurchaseOrderQueryService is the read side of purchase orders; issuance
// lives in POService.
type PurchaseOrderQueryService interface {
	GetOrder(ctx context.Context, id uuid.UUID) (PurchaseOrderResponse, error)
	ListOrders(ctx context.Context, page, limit int) ([]PurchaseOrderResponse, int64, error)
}

type purchaseOrderQueryService struct {
	repo repository.PurchaseOrderRepository
}

func NewPurchaseOrderQueryService(repo repository.PurchaseOrderRepository) PurchaseOrderQueryService {
	return &purchaseOrderQueryService{repo: repo}
}

func (s *purchaseOrderQueryService) GetOrder(ctx context.Context, id uuid.UUID) (PurchaseOrderResponse, error) {
	po, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return PurchaseOrderResponse{}, err
	}
	return PurchaseOrderResponse{
		ID:                po.ID,
		PONumber:          po.PONumber,
		PurchaseRequestID: po.PurchaseRequestID,
		Data:              json.RawMessage(po.Data),
		GeneratedAt:       po.GeneratedAt.Format(time.RFC3339),
	}, nil
}

func (s *purchaseOrderQueryService) ListOrders(ctx context.Context, page, limit int) ([]PurchaseOrderResponse, int64, error) {
	orders, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]PurchaseOrderResponse, 0, len(orders))
	for _, po := range orders {
		out = append(out, PurchaseOrderResponse{
			ID:                po.ID,
			PONumber:          po.PONumber,
			PurchaseRequestID: po.PurchaseRequestID,
			Data:              json.RawMessage(po.Data),
			GeneratedAt:       po.GeneratedAt.Format(time.RFC3339),
		})
	}
	return out, total, nil
}
