package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/observability"
	"github.com/boddenberg/travel-crm-go/internal/service"
)

func TestSummarizeLeads(t *testing.T) {
	leads := []domain.Lead{
		{ID: "1", Status: domain.StatusLead, DepartureDate: day(3)},
		{ID: "2", Status: domain.StatusProposalSent, DepositAmount: ptr(500)},
		{ID: "3", Status: domain.StatusPaid, TotalPrice: ptr(10000), Commission: ptr(800), DepositPaid: true, DepartureDate: day(7)},
		{ID: "4", Status: domain.StatusFlying, TotalPrice: ptr(6000), Commission: ptr(450), DepartureDate: day(-2)},
		{ID: "5", Status: domain.StatusPaid, TotalPrice: ptr(2000), DepositAmount: ptr(300), DepartureDate: day(8)},
	}

	dash := service.SummarizeLeads(leads, fixedNow)

	assert.Equal(t, 5, dash.TotalLeads)
	assert.Equal(t, 18000.0, dash.Revenue)
	assert.Equal(t, 1250.0, dash.Commission)
	assert.Equal(t, 2, dash.OutstandingDeposits)
	assert.Equal(t, 800.0, dash.OutstandingAmount)
	assert.InDelta(t, 0.6, dash.ConversionRate, 1e-9)

	require.Len(t, dash.ByStatus, 5)
	assert.Equal(t, domain.StatusPaid, dash.ByStatus[2].Status)
	assert.Equal(t, 2, dash.ByStatus[2].Count)
	assert.Equal(t, "שולם", dash.ByStatus[2].Label)

	require.Len(t, dash.UpcomingDepartures, 2)
	assert.Equal(t, "1", dash.UpcomingDepartures[0].LeadID)
	assert.Equal(t, 3, dash.UpcomingDepartures[0].DaysUntil)
	assert.Equal(t, "3", dash.UpcomingDepartures[1].LeadID)
}

func TestSummarizeLeads_Empty(t *testing.T) {
	dash := service.SummarizeLeads(nil, fixedNow)
	assert.Zero(t, dash.TotalLeads)
	assert.Zero(t, dash.ConversionRate)
	assert.NotNil(t, dash.UpcomingDepartures)
	assert.Len(t, dash.ByStatus, 5)
}

func TestDashboardService_Get(t *testing.T) {
	mem := newStore()
	files := newFakeFiles()
	ctx := context.Background()
	leads := newLeadService(mem, files)
	docs := newDocumentService(mem, leads, files)
	svc := service.NewDashboardService(leads, mem, mem, docs, 2, observability.NewMetrics(), zap.NewNop())

	for i := range 150 {
		l := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Lead", Status: domain.StatusLead})
		if i%50 == 0 {
			_, err := mem.CreateDocument(ctx, &domain.Document{LeadID: l.ID, Type: domain.DocPassport, ExpiryDate: day(-1)})
			require.NoError(t, err)
		}
	}
	seedLead(mem, domain.Lead{UserID: "agent-2", Name: "Other"})
	_, err := mem.CreateNotification(ctx, &domain.Notification{UserID: "agent-1", Type: domain.NotifAdminMessage, Title: "hi"})
	require.NoError(t, err)

	dash, err := svc.Get(ctx, agent("agent-1"))
	require.NoError(t, err)
	assert.Equal(t, 150, dash.TotalLeads)
	assert.Equal(t, 3, dash.Documents.Expired)
	assert.Equal(t, 1, dash.UnreadNotifications)
}
