//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

var (
	once      sync.Once
	sharedDSN string
	initErr   error
)

// setupStore starts one PostgreSQL container per test run, applies the
// embedded migrations and returns a store on a fresh pool.
func setupStore(t *testing.T) *Store {
	t.Helper()

	once.Do(func() {
		sharedDSN, initErr = startContainer()
	})
	require.NoError(t, initErr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, sharedDSN, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	return NewStore(pool)
}

func startContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "crm",
				"POSTGRES_PASSWORD": "crm",
				"POSTGRES_DB":       "crm",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("get mapped port: %w", err)
	}
	return fmt.Sprintf("postgres://crm:crm@%s:%s/crm?sslmode=disable", host, port.Port()), nil
}

func seedAgent(t *testing.T, s *Store) *domain.Profile {
	t.Helper()
	p, err := s.InsertProfile(context.Background(), &domain.Profile{
		Email:    fmt.Sprintf("agent-%d@example.com", time.Now().UnixNano()),
		Role:     domain.RoleAgent,
		Status:   domain.ProfileApproved,
		IsActive: true,
	})
	require.NoError(t, err)
	return p
}

func TestLeadLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	agent := seedAgent(t, s)

	lead, err := s.CreateLead(ctx, &domain.Lead{UserID: agent.ID, Name: "Dana", Destination: "Rome", Tags: []string{"vip"}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLead, lead.Status)
	assert.Empty(t, lead.DepartureDate)

	err = s.UpdateLead(ctx, lead.ID, map[string]any{
		"status":         "proposal_sent",
		"departure_date": "2026-07-01",
		"total_price":    1500.0,
	})
	require.NoError(t, err)

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProposalSent, got.Status)
	assert.Equal(t, "2026-07-01", got.DepartureDate)
	require.NotNil(t, got.TotalPrice)
	assert.Equal(t, 1500.0, *got.TotalPrice)
	assert.Equal(t, []string{"vip"}, got.Tags)

	list, err := s.ListLeads(ctx, domain.LeadFilter{UserID: agent.ID, Search: "ROM"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateLead_BadValueLeavesRowUntouched(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	agent := seedAgent(t, s)

	lead, err := s.CreateLead(ctx, &domain.Lead{UserID: agent.ID, Name: "Avi"})
	require.NoError(t, err)

	err = s.UpdateLead(ctx, lead.ID, map[string]any{"status": "proposal_sent", "total_price": "abc"})
	require.Error(t, err)

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLead, got.Status)
}

func TestDocumentsCascadeAndExpiryWindow(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	agent := seedAgent(t, s)

	lead, err := s.CreateLead(ctx, &domain.Lead{UserID: agent.ID, Name: "Noa"})
	require.NoError(t, err)
	_, err = s.CreateDocument(ctx, &domain.Document{LeadID: lead.ID, Type: domain.DocPassport, Name: "passport", ExpiryDate: "2031-05-10"})
	require.NoError(t, err)
	_, err = s.CreateDocument(ctx, &domain.Document{LeadID: lead.ID, Type: domain.DocTicket, Name: "ticket"})
	require.NoError(t, err)

	expiring, err := s.ListDocumentsExpiring(ctx, "2031-05-01", "2031-05-10")
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "2031-05-10", expiring[0].ExpiryDate)

	scoped, err := s.ListDocumentsExpiringForLeads(ctx, []string{lead.ID}, "2031-05-01", "2031-05-10")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	outside, err := s.ListDocumentsExpiringForLeads(ctx, []string{lead.ID}, "2031-06-01", "2031-06-30")
	require.NoError(t, err)
	assert.Empty(t, outside)

	require.NoError(t, s.DeleteLead(ctx, lead.ID))
	docs, err := s.ListDocuments(ctx, lead.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestNotificationsByData(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	admin := seedAgent(t, s)

	n, err := s.CreateNotification(ctx, &domain.Notification{
		UserID: admin.ID,
		Type:   domain.NotifPendingApproval,
		Title:  "pending",
		Data:   map[string]any{domain.DataUserID: "p-42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "p-42", n.Data[domain.DataUserID])

	found, err := s.HasRecentNotification(ctx, admin.ID, domain.NotifPendingApproval, domain.DataUserID, "p-42", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, s.DeleteNotificationsByData(ctx, domain.NotifPendingApproval, domain.DataUserID, "p-42"))
	found, err = s.HasRecentNotification(ctx, admin.ID, domain.NotifPendingApproval, domain.DataUserID, "p-42", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, found)
}
