package service

import (
	"context"
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testSchema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT,
		phone TEXT,
		password TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'staff',
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE refresh_tokens (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE purchase_requests (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		total_amount NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_by_id TEXT NOT NULL,
		required_approval_levels INTEGER NOT NULL DEFAULT 2,
		current_approval_level INTEGER,
		purchase_order_id TEXT UNIQUE,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE request_items (
		id TEXT PRIMARY KEY,
		purchase_request_id TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		unit_price NUMERIC NOT NULL
	)`,
	`CREATE TABLE approvals (
		id TEXT PRIMARY KEY,
		purchase_request_id TEXT NOT NULL,
		approver_id TEXT NOT NULL,
		level INTEGER NOT NULL,
		decision TEXT NOT NULL,
		comment TEXT,
		created_at DATETIME,
		UNIQUE (purchase_request_id, approver_id, level)
	)`,
	`CREATE TABLE purchase_orders (
		id TEXT PRIMARY KEY,
		po_number TEXT NOT NULL UNIQUE,
		data TEXT NOT NULL,
		generated_at DATETIME NOT NULL,
		purchase_request_id TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE receipts (
		id TEXT PRIMARY KEY,
		purchase_request_id TEXT NOT NULL,
		file_url TEXT NOT NULL,
		vendor TEXT,
		note TEXT,
		uploaded_by_id TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE audit_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		action TEXT NOT NULL,
		entity_id TEXT,
		entity_name TEXT,
		details TEXT,
		created_at DATETIME
	)`,
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	for _, stmt := range testSchema {
		require.NoError(t, db.Exec(stmt).Error)
	}

	return db
}

func seedUser(t *testing.T, db *gorm.DB, role string) *model.User {
	t.Helper()

	user := &model.User{
		Email:     uuid.NewString() + "@example.com",
		FirstName: "Test",
		LastName:  role,
		Password:  "hashed",
		Role:      role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedRequest(t *testing.T, db *gorm.DB, creator *model.User, requiredLevels int) *model.PurchaseRequest {
	t.Helper()

	startLevel := 1
	pr := &model.PurchaseRequest{
		Title:                  "Office chairs",
		Description:            "Two chairs for the back office",
		TotalAmount:            decimal.RequireFromString("20.00"),
		Status:                 model.StatusPending,
		CreatedByID:            creator.ID,
		RequiredApprovalLevels: requiredLevels,
		CurrentApprovalLevel:   &startLevel,
		Items: []model.RequestItem{
			{Name: "Chair", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		},
	}
	require.NoError(t, db.Create(pr).Error)
	return pr
}

func reloadRequest(t *testing.T, db *gorm.DB, id uuid.UUID) *model.PurchaseRequest {
	t.Helper()

	var pr model.PurchaseRequest
	require.NoError(t, db.Preload("Items").First(&pr, "id = ?", id).Error)
	return &pr
}

func testCtx() context.Context {
	return context.Background()
}
