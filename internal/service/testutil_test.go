package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agenthub-platform/agenthub/internal/model"
	"github.com/agenthub-platform/agenthub/internal/store"
)

// newTestStore creates an in-memory SQLite database for testing
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return store.New(db)
}

func newTestUser(t *testing.T, s *store.Store, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, Name: "Test User"}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func newTestAdmin(t *testing.T, s *store.Store, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, Name: "Admin", IsAdmin: true}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func newTestAgent(t *testing.T, s *store.Store, creatorID string) *model.Agent {
	t.Helper()
	agent := &model.Agent{
		Name:        "test-agent",
		Description: "an agent for tests",
		Version:     "1.0.0",
		CreatorID:   creatorID,
	}
	require.NoError(t, s.CreateAgent(context.Background(), agent))
	return agent
}

func countRows(t *testing.T, s *store.Store, m any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, s.DB().Model(m).Count(&count).Error)
	return count
}
