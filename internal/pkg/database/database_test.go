package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weibaohui/goalagent/backend/internal/model"
)

func TestInitDB_SQLiteMigrates(t *testing.T) {
	db, err := InitDB("sqlite", ":memory:")
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&model.RunRecord{}))
}
