package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogPublisherWritesOneEntryPerEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pub := NewLogPublisher(zap.New(core))

	tenantID := uuid.New()
	pub.Publish(context.Background(),
		DatabaseProvisioned{TenantID: tenantID, DatabaseName: "tenant_acme"},
		DatabaseSuspended{TenantID: tenantID},
	)

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "tenantdb.database_provisioned", entries[0].ContextMap()["event"])
	require.Equal(t, "tenantdb.database_suspended", entries[1].ContextMap()["event"])
}

func TestNewLogPublisherRequiresLogger(t *testing.T) {
	require.Panics(t, func() { NewLogPublisher(nil) })
}
