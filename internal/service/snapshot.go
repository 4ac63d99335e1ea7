package service

import (
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
)

// ItemSnapshot is a request line item as exposed in workflow payloads.
type ItemSnapshot struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
}

// PurchaseRequestSnapshot is the minimal serialization of a request used in
// approve/reject payloads and listings. Amounts render as fixed two-decimal
// strings.
type PurchaseRequestSnapshot struct {
	ID                     uuid.UUID      `json:"id"`
	Title                  string         `json:"title"`
	Description            string         `json:"description"`
	TotalAmount            string         `json:"total_amount"`
	Status                 string         `json:"status"`
	CreatedAt              string         `json:"created_at"`
	RequiredApprovalLevels int            `json:"required_approval_levels"`
	CurrentApprovalLevel   *int           `json:"current_approval_level"`
	Items                  []ItemSnapshot `json:"items"`
}

// SnapshotPurchaseRequest builds the minimal snapshot from a loaded request.
func SnapshotPurchaseRequest(pr *model.PurchaseRequest) PurchaseRequestSnapshot {
	snap := PurchaseRequestSnapshot{
		ID:                     pr.ID,
		Title:                  pr.Title,
		Description:            pr.Description,
		TotalAmount:            pr.TotalAmount.StringFixed(2),
		Status:                 pr.Status,
		CreatedAt:              pr.CreatedAt.Format(time.RFC3339),
		RequiredApprovalLevels: pr.RequiredApprovalLevels,
		CurrentApprovalLevel:   pr.CurrentApprovalLevel,
		Items:                  make([]ItemSnapshot, 0, len(pr.Items)),
	}
	for _, it := range pr.Items {
		snap.Items = append(snap.Items, ItemSnapshot{
			ID:        it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	return snap
}

// ApproverInfo identifies the user credited on a purchase order document.
type ApproverInfo struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	FullName  string    `json:"full_name"`
}

// PurchaseOrderItem is one line of the frozen PO document.
type PurchaseOrderItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// PurchaseOrderData is the JSON document persisted on a purchase order: the
// request frozen at generation time plus the credited approver.
type PurchaseOrderData struct {
	PurchaseRequestID uuid.UUID           `json:"purchase_request_id"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	TotalAmount       string              `json:"total_amount"`
	CreatedAt         string              `json:"created_at"`
	Items             []PurchaseOrderItem `json:"items"`
	Approver          *ApproverInfo       `json:"approver,omitempty"`
}

func buildApproverInfo(user *model.User) *ApproverInfo {
	if user == nil {
		return nil
	}
	return &ApproverInfo{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		FullName:  user.FullName(),
	}
}
