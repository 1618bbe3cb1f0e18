package shared

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLoggerWithoutPoolWritesLog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLogger(nil, slog.New(slog.NewJSONHandler(&buf, nil)))

	err := logger.Record(context.Background(), AuditLog{
		ActorID:  "user-admin",
		Action:   "role.create",
		Entity:   "role",
		EntityID: "role-1",
		Meta:     map[string]any{"name": "Ops"},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"action":"role.create"`)
	assert.Contains(t, buf.String(), `"entity_id":"role-1"`)
}

func TestAuditLoggerRejectsIncompleteRecords(t *testing.T) {
	logger := NewAuditLogger(nil, nil)
	require.Error(t, logger.Record(context.Background(), AuditLog{Action: "role.create"}))

	var nilLogger *AuditLogger
	require.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "a", Entity: "b", EntityID: "c"}))
}

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "Invalid email or password", UserSafeMessage(ErrInvalidCredentials))
	assert.Equal(t, "Something went wrong, please try again", UserSafeMessage(assert.AnError))
	assert.Empty(t, UserSafeMessage(nil))
}

func TestCoreResources(t *testing.T) {
	assert.Contains(t, CoreResources(), ResourceRoles)
	assert.Len(t, CoreResources(), 5)
}
