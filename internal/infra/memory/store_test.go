package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

func TestUpdateLead_RejectsWholePatchOnTypeMismatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	lead, err := s.CreateLead(ctx, &domain.Lead{UserID: "u1", Name: "Dana"})
	require.NoError(t, err)

	err = s.UpdateLead(ctx, lead.ID, map[string]any{"status": "proposal_sent", "total_price": "abc"})
	require.Error(t, err)

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLead, got.Status)
	assert.Nil(t, got.TotalPrice)
}

func TestUpdateLead_AppliesPatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	lead, _ := s.CreateLead(ctx, &domain.Lead{UserID: "u1", Name: "Dana", DepartureDate: "2026-07-01"})

	err := s.UpdateLead(ctx, lead.ID, map[string]any{"status": "proposal_sent", "total_price": 1500.0, "departure_date": nil})
	require.NoError(t, err)

	got, _ := s.GetLead(ctx, lead.ID)
	assert.Equal(t, domain.StatusProposalSent, got.Status)
	require.NotNil(t, got.TotalPrice)
	assert.Equal(t, 1500.0, *got.TotalPrice)
	assert.Empty(t, got.DepartureDate)
	assert.Equal(t, "u1", got.UserID)
}

func TestUpdateLead_UnknownColumn(t *testing.T) {
	ctx := context.Background()
	s := New()
	lead, _ := s.CreateLead(ctx, &domain.Lead{UserID: "u1"})

	assert.Error(t, s.UpdateLead(ctx, lead.ID, map[string]any{"user_id": "u2"}))
}

func TestDeleteLead_CascadesDocuments(t *testing.T) {
	ctx := context.Background()
	s := New()
	lead, _ := s.CreateLead(ctx, &domain.Lead{UserID: "u1"})
	doc, err := s.CreateDocument(ctx, &domain.Document{LeadID: lead.ID, Type: domain.DocPassport, ExpiryDate: "2027-01-01"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteLead(ctx, lead.ID))

	_, err = s.GetDocument(ctx, doc.ID)
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestListLeads_FilterAndSearch(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.CreateLead(ctx, &domain.Lead{UserID: "u1", Name: "Dana", Destination: "Rome"})
	_, _ = s.CreateLead(ctx, &domain.Lead{UserID: "u1", Name: "Avi", Destination: "Paris"})
	_, _ = s.CreateLead(ctx, &domain.Lead{UserID: "u2", Name: "Noa", Destination: "Rome"})

	got, err := s.ListLeads(ctx, domain.LeadFilter{UserID: "u1", Search: "rome"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dana", got[0].Name)

	all, _ := s.ListLeads(ctx, domain.LeadFilter{Search: "ROME"})
	assert.Len(t, all, 2)
}

func TestListDocumentsExpiring_InclusiveBounds(t *testing.T) {
	ctx := context.Background()
	s := New()
	lead, _ := s.CreateLead(ctx, &domain.Lead{UserID: "u1"})
	for _, exp := range []string{"2026-03-01", "2026-03-15", "2026-03-31", "2026-04-01", ""} {
		_, err := s.CreateDocument(ctx, &domain.Document{LeadID: lead.ID, Type: domain.DocVisa, ExpiryDate: exp})
		require.NoError(t, err)
	}

	docs, err := s.ListDocumentsExpiring(ctx, "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "2026-03-01", docs[0].ExpiryDate)
	assert.Equal(t, "2026-03-31", docs[2].ExpiryDate)
}

func TestListDocumentsExpiringForLeads(t *testing.T) {
	ctx := context.Background()
	s := New()
	mine, _ := s.CreateLead(ctx, &domain.Lead{UserID: "u1"})
	theirs, _ := s.CreateLead(ctx, &domain.Lead{UserID: "u2"})
	for _, d := range []domain.Document{
		{LeadID: mine.ID, ExpiryDate: "2026-03-10"},
		{LeadID: mine.ID, ExpiryDate: "2026-05-01"},
		{LeadID: mine.ID},
		{LeadID: theirs.ID, ExpiryDate: "2026-03-12"},
	} {
		_, err := s.CreateDocument(ctx, &domain.Document{LeadID: d.LeadID, Type: domain.DocVisa, ExpiryDate: d.ExpiryDate})
		require.NoError(t, err)
	}

	docs, err := s.ListDocumentsExpiringForLeads(ctx, []string{mine.ID}, "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "2026-03-10", docs[0].ExpiryDate)

	none, err := s.ListDocumentsExpiringForLeads(ctx, nil, "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHasRecentNotification(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := New(fixedClock(now))

	_, err := s.CreateNotification(ctx, &domain.Notification{
		UserID: "u1",
		Type:   domain.NotifFlightTomorrow,
		Data:   map[string]any{domain.DataLeadID: "l1"},
	})
	require.NoError(t, err)

	found, _ := s.HasRecentNotification(ctx, "u1", domain.NotifFlightTomorrow, domain.DataLeadID, "l1", now.Add(-24*time.Hour))
	assert.True(t, found)

	found, _ = s.HasRecentNotification(ctx, "u2", domain.NotifFlightTomorrow, domain.DataLeadID, "l1", now.Add(-24*time.Hour))
	assert.False(t, found, "scoped per recipient")

	found, _ = s.HasRecentNotification(ctx, "u1", domain.NotifFlightTomorrow, domain.DataLeadID, "l1", now.Add(time.Minute))
	assert.False(t, found, "older than the window")
}

func TestDeleteNotificationsByData(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, admin := range []string{"a1", "a2"} {
		_, _ = s.CreateNotification(ctx, &domain.Notification{UserID: admin, Type: domain.NotifPendingApproval, Data: map[string]any{domain.DataUserID: "p1"}})
	}
	_, _ = s.CreateNotification(ctx, &domain.Notification{UserID: "a1", Type: domain.NotifPendingApproval, Data: map[string]any{domain.DataUserID: "p2"}})

	require.NoError(t, s.DeleteNotificationsByData(ctx, domain.NotifPendingApproval, domain.DataUserID, "p1"))

	left, _ := s.ListNotifications(ctx, "a1", false, 0)
	require.Len(t, left, 1)
	assert.Equal(t, "p2", left[0].Data[domain.DataUserID])
}

func TestNotificationOwnership(t *testing.T) {
	ctx := context.Background()
	s := New()
	n, _ := s.CreateNotification(ctx, &domain.Notification{UserID: "u1", Type: domain.NotifAdminMessage})

	var nf *domain.ErrNotFound
	assert.ErrorAs(t, s.MarkNotificationRead(ctx, "u2", n.ID), &nf)
	require.NoError(t, s.MarkNotificationRead(ctx, "u1", n.ID))

	unread, _ := s.ListNotifications(ctx, "u1", true, 0)
	assert.Empty(t, unread)
}
