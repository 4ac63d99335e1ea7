package repository

import (
	"testing"
	"time"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateEnforcesUniqueTriple(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)

	staff := seedUser(t, db, model.RoleStaff)
	approver := seedUser(t, db, model.RoleApprover1)
	pr := seedRequest(t, db, staff)

	first := &model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: approver.ID, Level: 1, Decision: model.DecisionApproved,
	}
	require.NoError(t, repo.Create(testCtx(), first))

	// Same (request, approver, level) again loses on the unique index.
	dup := &model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: approver.ID, Level: 1, Decision: model.DecisionApproved,
	}
	err := repo.Create(testCtx(), dup)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// A different level for the same approver is fine.
	other := &model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: approver.ID, Level: 2, Decision: model.DecisionApproved,
	}
	assert.NoError(t, repo.Create(testCtx(), other))
}

func TestHasApprovedDecision(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)

	staff := seedUser(t, db, model.RoleStaff)
	approver := seedUser(t, db, model.RoleApprover1)
	pr := seedRequest(t, db, staff)

	got, err := repo.HasApprovedDecision(testCtx(), pr.ID, approver.ID, 1)
	require.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, repo.Create(testCtx(), &model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: approver.ID, Level: 1, Decision: model.DecisionRejected,
	}))

	// A REJECTED row does not count as an approved decision.
	got, err = repo.HasApprovedDecision(testCtx(), pr.ID, approver.ID, 1)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestRecordRejectionOutcomes(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)

	staff := seedUser(t, db, model.RoleStaff)
	approver := seedUser(t, db, model.RoleApprover1)
	pr := seedRequest(t, db, staff)

	// No prior decision: a new REJECTED row is inserted.
	a, outcome, err := repo.RecordRejection(testCtx(), pr.ID, approver.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, RejectionCreated, outcome)
	assert.Equal(t, model.DecisionRejected, a.Decision)

	// Same approver again: no-op.
	_, outcome, err = repo.RecordRejection(testCtx(), pr.ID, approver.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, RejectionNoop, outcome)

	var count int64
	require.NoError(t, db.Model(&model.Approval{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordRejectionFlipsApprovedRow(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)

	staff := seedUser(t, db, model.RoleStaff)
	approver := seedUser(t, db, model.RoleApprover1)
	pr := seedRequest(t, db, staff)

	require.NoError(t, repo.Create(testCtx(), &model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: approver.ID, Level: 1, Decision: model.DecisionApproved,
	}))

	_, outcome, err := repo.RecordRejection(testCtx(), pr.ID, approver.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, RejectionFlipped, outcome)

	var stored model.Approval
	require.NoError(t, db.First(&stored, "purchase_request_id = ? AND approver_id = ?", pr.ID, approver.ID).Error)
	assert.Equal(t, model.DecisionRejected, stored.Decision)
}

func TestApprovedLevelsSortedDistinct(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)

	staff := seedUser(t, db, model.RoleStaff)
	first := seedUser(t, db, model.RoleApprover1)
	second := seedUser(t, db, model.RoleApprover2)
	rejecter := seedUser(t, db, model.RoleFinance)
	pr := seedRequest(t, db, staff)

	require.NoError(t, repo.Create(testCtx(), &model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: second.ID, Level: 2, Decision: model.DecisionApproved,
	}))
	require.NoError(t, repo.Create(testCtx(), &model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: first.ID, Level: 1, Decision: model.DecisionApproved,
	}))
	require.NoError(t, repo.Create(testCtx(), &model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: rejecter.ID, Level: 3, Decision: model.DecisionRejected,
	}))

	levels, err := repo.ApprovedLevels(testCtx(), pr.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, levels)
}

func TestLatestApprovedByLevelPrefersHighestLevel(t *testing.T) {
	db := openTestDB(t)
	repo := NewApprovalRepository(db)

	staff := seedUser(t, db, model.RoleStaff)
	first := seedUser(t, db, model.RoleApprover1)
	second := seedUser(t, db, model.RoleApprover2)
	pr := seedRequest(t, db, staff)

	// The level-1 row is newer but level 2 wins.
	require.NoError(t, db.Create(&model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: second.ID, Level: 2, Decision: model.DecisionApproved,
		CreatedAt: time.Now().Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&model.Approval{
		PurchaseRequestID: pr.ID, ApproverID: first.ID, Level: 1, Decision: model.DecisionApproved,
		CreatedAt: time.Now(),
	}).Error)

	latest, err := repo.LatestApprovedByLevel(testCtx(), pr.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Level)
	assert.Equal(t, second.ID, latest.ApproverID)
	require.NotNil(t, latest.Approver)
	assert.Equal(t, second.Email, latest.Approver.Email)
}

func TestListPendingForLevelExcludesActedApprover(t *testing.T) {
	db := openTestDB(t)
	requests := NewPurchaseRequestRepository(db)
	approvals := NewApprovalRepository(db)

	staff := seedUser(t, db, model.RoleStaff)
	approver := seedUser(t, db, model.RoleApprover1)

	waiting := seedRequest(t, db, staff)
	acted := seedRequest(t, db, staff)
	require.NoError(t, approvals.Create(testCtx(), &model.Approval{
		PurchaseRequestID: acted.ID, ApproverID: approver.ID, Level: 1, Decision: model.DecisionApproved,
	}))

	queue, total, err := requests.ListPendingForLevel(testCtx(), 1, approver.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, queue, 1)
	assert.Equal(t, waiting.ID, queue[0].ID)
}
