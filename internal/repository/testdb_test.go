package repository

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

func seedRequest(t *testing.T, db *gorm.DB, creator *model.User) *model.PurchaseRequest {
	t.Helper()

	startLevel := 1
	pr := &model.PurchaseRequest{
		Title:                  "Monitors",
		TotalAmount:            decimal.RequireFromString("150.00"),
		Status:                 model.StatusPending,
		CreatedByID:            creator.ID,
		RequiredApprovalLevels: 2,
		CurrentApprovalLevel:   &startLevel,
		Items: []model.RequestItem{
			{Name: "Monitor", Quantity: 1, UnitPrice: decimal.RequireFromString("150.00")},
		},
	}
	require.NoError(t, db.Create(pr).Error)
	return pr
}

func testCtx() context.Context {
	return context.Background()
}
