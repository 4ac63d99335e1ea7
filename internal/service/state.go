package service

import (
	"errors"
	"fmt"

	"backend/internal/model"
)

// Workflow error taxonomy. Validation failures are detected before any
// mutation and translated to payloads by the orchestrator.
var (
	ErrNotPending        = errors.New("purchase request is not pending")
	ErrAlreadyFinalized  = errors.New("approval already finalized")
	ErrDuplicateDecision = errors.New("already approved by this approver at this level")
	ErrIssuanceFailed    = errors.New("purchase order issuance failed")
)

// WrongTurnError reports an approval attempted out of sequence.
type WrongTurnError struct {
	ExpectedLevel int
	SuppliedLevel int
}

func (e *WrongTurnError) Error() string {
	return fmt.Sprintf("not your turn: expected level %d, got level %d", e.ExpectedLevel, e.SuppliedLevel)
}

// AssertEligibleForAction fails unless the request is still PENDING.
func AssertEligibleForAction(pr *model.PurchaseRequest) error {
	if pr.Status != model.StatusPending {
		return ErrNotPending
	}
	return nil
}

// AssertNotFinalized guards the defensive race where a request reads as
// PENDING but its level was already cleared.
func AssertNotFinalized(pr *model.PurchaseRequest) error {
	if pr.CurrentApprovalLevel == nil {
		return ErrAlreadyFinalized
	}
	return nil
}

// AssertLevelMatch fails unless the acting level is exactly the request's
// current approval level.
func AssertLevelMatch(pr *model.PurchaseRequest, actingLevel int) error {
	if pr.CurrentApprovalLevel == nil || actingLevel != *pr.CurrentApprovalLevel {
		expected := 0
		if pr.CurrentApprovalLevel != nil {
			expected = *pr.CurrentApprovalLevel
		}
		return &WrongTurnError{ExpectedLevel: expected, SuppliedLevel: actingLevel}
	}
	return nil
}

// Advance applies the approval transition for actingLevel in memory and
// reports whether that level was final. The caller persists inside its own
// transaction.
func Advance(pr *model.PurchaseRequest, actingLevel int) bool {
	if actingLevel == pr.RequiredApprovalLevels {
		pr.Status = model.StatusApproved
		pr.CurrentApprovalLevel = nil
		return true
	}
	next := actingLevel + 1
	pr.CurrentApprovalLevel = &next
	return false
}
