package service

import (
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPRServiceFixture(t *testing.T) (PurchaseRequestService, *gorm.DB) {
	t.Helper()

	db := openTestDB(t)
	requests := repository.NewPurchaseRequestRepository(db)
	approvals := repository.NewApprovalRepository(db)
	receipts := repository.NewReceiptRepository(db)
	audit := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	svc := NewPurchaseRequestService(requests, approvals, receipts, audit, txManager, DefaultApprovalChain())
	return svc, db
}

func TestCreateComputesTotalFromItems(t *testing.T) {
	svc, db := newPRServiceFixture(t)
	staff := seedUser(t, db, model.RoleStaff)

	resp, err := svc.Create(testCtx(), staff, CreatePurchaseRequestRequest{
		Title:       "Laptops",
		Description: "Two dev laptops and a dock",
		Items: []RequestItemInput{
			{Name: "Laptop", Quantity: 2, UnitPrice: "1200.50"},
			{Name: "Dock", Quantity: 1, UnitPrice: "99.00"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "2500.00", resp.TotalAmount)
	assert.Equal(t, model.StatusPending, resp.Status)
	assert.Equal(t, model.DefaultRequiredApprovalLevels, resp.RequiredApprovalLevels)
	require.NotNil(t, resp.CurrentApprovalLevel)
	assert.Equal(t, 1, *resp.CurrentApprovalLevel)
	require.Len(t, resp.Items, 2)

	var auditCount int64
	require.NoError(t, db.Model(&model.AuditLog{}).Where("action = ?", model.ActionCreateRequest).Count(&auditCount).Error)
	assert.Equal(t, int64(1), auditCount)
}

func TestCreateRejectsLevelsOutsideChain(t *testing.T) {
	svc, db := newPRServiceFixture(t)
	staff := seedUser(t, db, model.RoleStaff)

	four := 4
	_, err := svc.Create(testCtx(), staff, CreatePurchaseRequestRequest{
		Title:                  "Too deep",
		RequiredApprovalLevels: &four,
		Items:                  []RequestItemInput{{Name: "Pen", Quantity: 1, UnitPrice: "1.00"}},
	})
	assert.ErrorIs(t, err, ErrInvalidLevels)

	zero := 0
	_, err = svc.Create(testCtx(), staff, CreatePurchaseRequestRequest{
		Title:                  "Too shallow",
		RequiredApprovalLevels: &zero,
		Items:                  []RequestItemInput{{Name: "Pen", Quantity: 1, UnitPrice: "1.00"}},
	})
	assert.ErrorIs(t, err, ErrInvalidLevels)
}

func TestCreateRejectsBadUnitPrice(t *testing.T) {
	svc, db := newPRServiceFixture(t)
	staff := seedUser(t, db, model.RoleStaff)

	_, err := svc.Create(testCtx(), staff, CreatePurchaseRequestRequest{
		Title: "Bad price",
		Items: []RequestItemInput{{Name: "Pen", Quantity: 1, UnitPrice: "not-a-number"}},
	})
	assert.Error(t, err)

	_, err = svc.Create(testCtx(), staff, CreatePurchaseRequestRequest{
		Title: "Negative price",
		Items: []RequestItemInput{{Name: "Pen", Quantity: 1, UnitPrice: "-1.00"}},
	})
	assert.Error(t, err)
}

func TestUpdateReplacesItemsAndRecomputesTotal(t *testing.T) {
	svc, db := newPRServiceFixture(t)
	staff := seedUser(t, db, model.RoleStaff)
	pr := seedRequest(t, db, staff, 2)

	resp, err := svc.Update(testCtx(), staff, pr.ID, UpdatePurchaseRequestRequest{
		Items: []RequestItemInput{
			{Name: "Desk", Quantity: 1, UnitPrice: "300.00"},
			{Name: "Lamp", Quantity: 3, UnitPrice: "15.00"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "345.00", resp.TotalAmount)
	require.Len(t, resp.Items, 2)

	// Old item rows are gone.
	var itemCount int64
	require.NoError(t, db.Model(&model.RequestItem{}).Where("purchase_request_id = ?", pr.ID).Count(&itemCount).Error)
	assert.Equal(t, int64(2), itemCount)

	got := reloadRequest(t, db, pr.ID)
	assert.Equal(t, "345", got.TotalAmount.String())
}

func TestUpdateOnlyByCreatorWhilePending(t *testing.T) {
	svc, db := newPRServiceFixture(t)
	staff := seedUser(t, db, model.RoleStaff)
	other := seedUser(t, db, model.RoleStaff)
	pr := seedRequest(t, db, staff, 2)

	title := "New title"
	_, err := svc.Update(testCtx(), other, pr.ID, UpdatePurchaseRequestRequest{Title: &title})
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, db.Model(pr).Update("status", model.StatusApproved).Error)
	_, err = svc.Update(testCtx(), staff, pr.ID, UpdatePurchaseRequestRequest{Title: &title})
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestListScopesByRole(t *testing.T) {
	svc, db := newPRServiceFixture(t)
	staff := seedUser(t, db, model.RoleStaff)
	other := seedUser(t, db, model.RoleStaff)
	finance := seedUser(t, db, model.RoleFinance)
	admin := seedUser(t, db, model.RoleAdmin)

	mine := seedRequest(t, db, staff, 2)
	theirs := seedRequest(t, db, other, 2)
	require.NoError(t, db.Model(theirs).Updates(map[string]any{
		"status":                 model.StatusApproved,
		"current_approval_level": nil,
	}).Error)

	own, total, err := svc.List(testCtx(), staff, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	approvedOnly, total, err := svc.List(testCtx(), finance, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, approvedOnly, 1)
	assert.Equal(t, theirs.ID, approvedOnly[0].ID)

	_, total, err = svc.List(testCtx(), admin, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestListPendingExcludesActedRequests(t *testing.T) {
	svc, db := newPRServiceFixture(t)
	staff := seedUser(t, db, model.RoleStaff)
	first := seedUser(t, db, model.RoleApprover1)

	waiting := seedRequest(t, db, staff, 2)
	acted := seedRequest(t, db, staff, 2)
	require.NoError(t, db.Create(&model.Approval{
		PurchaseRequestID: acted.ID, ApproverID: first.ID, Level: 1, Decision: model.DecisionRejected,
	}).Error)

	queue, total, err := svc.ListPending(testCtx(), first, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, queue, 1)
	assert.Equal(t, waiting.ID, queue[0].ID)

	// Roles outside the chain have no queue.
	_, _, err = svc.ListPending(testCtx(), staff, 1, 20)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteRestrictedToFinalizedRequests(t *testing.T) {
	svc, db := newPRServiceFixture(t)
	staff := seedUser(t, db, model.RoleStaff)
	finance := seedUser(t, db, model.RoleFinance)
	pr := seedRequest(t, db, staff, 2)

	assert.ErrorIs(t, svc.Delete(testCtx(), staff, pr.ID), ErrForbidden)
	assert.ErrorIs(t, svc.Delete(testCtx(), finance, pr.ID), ErrDeleteNotFinal)

	require.NoError(t, db.Model(pr).Updates(map[string]any{
		"status":                 model.StatusApproved,
		"current_approval_level": nil,
	}).Error)
	require.NoError(t, svc.Delete(testCtx(), finance, pr.ID))

	var count int64
	require.NoError(t, db.Model(&model.PurchaseRequest{}).Where("id = ?", pr.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitAndListReceipts(t *testing.T) {
	svc, db := newPRServiceFixture(t)
	staff := seedUser(t, db, model.RoleStaff)
	other := seedUser(t, db, model.RoleStaff)
	pr := seedRequest(t, db, staff, 2)

	_, err := svc.SubmitReceipt(testCtx(), other, pr.ID, SubmitReceiptRequest{
		FileURL: "https://files.example.com/r1.pdf",
	})
	assert.ErrorIs(t, err, ErrReceiptNotOwner)

	receipt, err := svc.SubmitReceipt(testCtx(), staff, pr.ID, SubmitReceiptRequest{
		FileURL: "https://files.example.com/r1.pdf",
		Vendor:  "OfficeMart",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/r1.pdf", receipt.FileURL)

	listed, err := svc.ListReceipts(testCtx(), pr.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "OfficeMart", listed[0].Vendor)

	// Rejected requests take no further receipts.
	require.NoError(t, db.Model(pr).Update("status", model.StatusRejected).Error)
	_, err = svc.SubmitReceipt(testCtx(), staff, pr.ID, SubmitReceiptRequest{
		FileURL: "https://files.example.com/r2.pdf",
	})
	assert.ErrorIs(t, err, ErrReceiptRejected)
}

func TestListMyDecisions(t *testing.T) {
	svc, db := newPRServiceFixture(t)
	staff := seedUser(t, db, model.RoleStaff)
	first := seedUser(t, db, model.RoleApprover1)
	pr := seedRequest(t, db, staff, 2)

	require.NoError(t, db.Create(&model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: first.ID, Level: 1, Decision: model.DecisionApproved,
	}).Error)

	approved, err := svc.ListMyDecisions(testCtx(), first, model.DecisionApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, pr.ID, approved[0].PurchaseRequestID)
	require.NotNil(t, approved[0].PurchaseRequest)
	assert.Equal(t, "Office chairs", approved[0].PurchaseRequest.Title)

	rejected, err := svc.ListMyDecisions(testCtx(), first, model.DecisionRejected)
	require.NoError(t, err)
	assert.Empty(t, rejected)

	_, err = svc.ListMyDecisions(testCtx(), first, "MAYBE")
	assert.Error(t, err)
}
