package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePONumberFormat(t *testing.T) {
	pr := &model.PurchaseRequest{}
	require.NoError(t, pr.BeforeCreate(nil))

	number := generatePONumber(pr)

	pattern := regexp.MustCompile(`^PO-` + regexp.QuoteMeta(pr.ID.String()) + `-\d{14}-[A-Z0-9]{6}$`)
	assert.Regexp(t, pattern, number)
}

func TestGeneratePONumberUniqueness(t *testing.T) {
	pr := &model.PurchaseRequest{}
	require.NoError(t, pr.BeforeCreate(nil))

	seen := make(map[string]bool, 100)
	for i := 0; i < 100; i++ {
		n := generatePONumber(pr)
		assert.False(t, seen[n], "duplicate po number %s", n)
		seen[n] = true
	}
}

func TestBuildSnapshotFreezesRequest(t *testing.T) {
	db := openTestDB(t)
	approvals := repository.NewApprovalRepository(db)
	svc := NewPOService(db, approvals)

	staff := seedUser(t, db, model.RoleStaff)
	finance := seedUser(t, db, model.RoleFinance)
	pr := seedRequest(t, db, staff, 2)
	pr = reloadRequest(t, db, pr.ID)

	data, err := svc.BuildSnapshot(testCtx(), pr, finance)
	require.NoError(t, err)

	assert.Equal(t, pr.ID, data.PurchaseRequestID)
	assert.Equal(t, "Office chairs", data.Title)
	assert.Equal(t, "20.00", data.TotalAmount)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "Chair", data.Items[0].Name)
	assert.Equal(t, 2, data.Items[0].Quantity)
	assert.Equal(t, "10.00", data.Items[0].UnitPrice)
	require.NotNil(t, data.Approver)
	assert.Equal(t, finance.ID, data.Approver.ID)
	assert.Equal(t, finance.FullName(), data.Approver.FullName)
}

func TestBuildSnapshotCreditsHighestLevelApproval(t *testing.T) {
	db := openTestDB(t)
	approvals := repository.NewApprovalRepository(db)
	svc := NewPOService(db, approvals)

	staff := seedUser(t, db, model.RoleStaff)
	first := seedUser(t, db, model.RoleApprover1)
	second := seedUser(t, db, model.RoleApprover2)
	pr := seedRequest(t, db, staff, 2)

	require.NoError(t, db.Create(&model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: first.ID, Level: 1, Decision: model.DecisionApproved,
	}).Error)
	require.NoError(t, db.Create(&model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: second.ID, Level: 2, Decision: model.DecisionApproved,
	}).Error)

	data, err := svc.BuildSnapshot(testCtx(), reloadRequest(t, db, pr.ID), nil)
	require.NoError(t, err)

	require.NotNil(t, data.Approver)
	assert.Equal(t, second.ID, data.Approver.ID)
}

func TestIssueCreatesOrderWithBackReference(t *testing.T) {
	db := openTestDB(t)
	approvals := repository.NewApprovalRepository(db)
	svc := NewPOService(db, approvals)

	staff := seedUser(t, db, model.RoleStaff)
	finance := seedUser(t, db, model.RoleFinance)
	pr := seedRequest(t, db, staff, 2)
	pr = reloadRequest(t, db, pr.ID)

	po, err := svc.Issue(testCtx(), pr, finance)
	require.NoError(t, err)

	var stored model.PurchaseOrder
	require.NoError(t, db.First(&stored, "id = ?", po.ID).Error)
	assert.Equal(t, po.PONumber, stored.PONumber)
	require.NotNil(t, stored.PurchaseRequestID)
	assert.Equal(t, pr.ID, *stored.PurchaseRequestID)

	var data PurchaseOrderData
	require.NoError(t, json.Unmarshal([]byte(stored.Data), &data))
	assert.Equal(t, "20.00", data.TotalAmount)
	assert.Equal(t, pr.ID, data.PurchaseRequestID)
}

func TestIssueGivesUpAfterFiveCollisions(t *testing.T) {
	db := openTestDB(t)
	approvals := repository.NewApprovalRepository(db)
	svc := NewPOService(db, approvals).(*poService)

	staff := seedUser(t, db, model.RoleStaff)
	finance := seedUser(t, db, model.RoleFinance)
	pr := seedRequest(t, db, staff, 2)
	pr = reloadRequest(t, db, pr.ID)

	// Occupy the only number the generator will ever produce.
	require.NoError(t, db.Create(&model.PurchaseOrder{
		PONumber:    "PO-COLLIDING",
		Data:        "{}",
		GeneratedAt: time.Now(),
	}).Error)

	attempts := 0
	svc.numberFn = func(*model.PurchaseRequest) string {
		attempts++
		return "PO-COLLIDING"
	}

	_, err := svc.Issue(testCtx(), pr, finance)
	require.ErrorIs(t, err, ErrIssuanceFailed)
	assert.Equal(t, 5, attempts)

	// Only the pre-existing row remains, no partial writes.
	var count int64
	require.NoError(t, db.Model(&model.PurchaseOrder{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIssueSurfacesNonCollisionErrors(t *testing.T) {
	db := openTestDB(t)
	approvals := repository.NewApprovalRepository(db)
	svc := NewPOService(db, approvals).(*poService)

	staff := seedUser(t, db, model.RoleStaff)
	finance := seedUser(t, db, model.RoleFinance)
	pr := seedRequest(t, db, staff, 2)
	pr = reloadRequest(t, db, pr.ID)

	attempts := 0
	svc.numberFn = func(*model.PurchaseRequest) string {
		attempts++
		return fmt.Sprintf("PO-BROKEN-%d", attempts)
	}

	// Storage failure that is not a numbering collision.
	require.NoError(t, db.Exec("DROP TABLE purchase_orders").Error)

	_, err := svc.Issue(testCtx(), pr, finance)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIssuanceFailed)
	assert.Equal(t, 1, attempts)
}

func TestIssueConcurrentRequestsUniqueNumbers(t *testing.T) {
	db := openTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // sqlite: one writer at a time

	approvals := repository.NewApprovalRepository(db)
	svc := NewPOService(db, approvals)

	staff := seedUser(t, db, model.RoleStaff)
	finance := seedUser(t, db, model.RoleFinance)

	const n = 100
	requests := make([]*model.PurchaseRequest, n)
	for i := 0; i < n; i++ {
		requests[i] = seedRequest(t, db, staff, 2)
	}

	var wg sync.WaitGroup
	numbers := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(pr *model.PurchaseRequest) {
			defer wg.Done()
			po, err := svc.Issue(testCtx(), pr, finance)
			if err != nil {
				errs <- err
				return
			}
			numbers <- po.PONumber
		}(requests[i])
	}
	wg.Wait()
	close(errs)
	close(numbers)

	for err := range errs {
		t.Fatalf("issue failed: %v", err)
	}

	seen := make(map[string]bool, n)
	for number := range numbers {
		assert.False(t, seen[number], "duplicate po number %s", number)
		seen[number] = true
	}
	assert.Len(t, seen, n)

	var count int64
	require.NoError(t, db.Model(&model.PurchaseOrder{}).Count(&count).Error)
	assert.Equal(t, int64(n), count)
}

func TestIssueRecoversFromCollision(t *testing.T) {
	db := openTestDB(t)
	approvals := repository.NewApprovalRepository(db)
	svc := NewPOService(db, approvals).(*poService)

	staff := seedUser(t, db, model.RoleStaff)
	finance := seedUser(t, db, model.RoleFinance)
	pr := seedRequest(t, db, staff, 2)
	pr = reloadRequest(t, db, pr.ID)

	require.NoError(t, db.Create(&model.PurchaseOrder{
		PONumber:    "PO-TAKEN",
		Data:        "{}",
		GeneratedAt: time.Now(),
	}).Error)

	attempts := 0
	svc.numberFn = func(p *model.PurchaseRequest) string {
		attempts++
		if attempts < 3 {
			return "PO-TAKEN"
		}
		return fmt.Sprintf("PO-FRESH-%d", attempts)
	}

	po, err := svc.Issue(testCtx(), pr, finance)
	require.NoError(t, err)
	assert.Equal(t, "PO-FRESH-3", po.PONumber)
	assert.Equal(t, 3, attempts)
}
