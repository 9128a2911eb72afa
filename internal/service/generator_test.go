package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/observability"
	"github.com/boddenberg/travel-crm-go/internal/port"
	"github.com/boddenberg/travel-crm-go/internal/service"
)

func newGenerator(store port.RecordStore, dispatcher port.NotificationDispatcher) *service.NotificationGenerator {
	if dispatcher == nil {
		dispatcher = &recordingDispatcher{}
	}
	notifier := service.NewNotifier(store, dispatcher, zap.NewNop())
	cfg := service.GeneratorConfig{Location: testLoc, NotifyDays: 30, MaxConcurrency: 4, Now: clock}
	return service.NewNotificationGenerator(store, notifier, cfg, observability.NewMetrics(), zap.NewNop())
}

func notificationsOf(t *testing.T, store port.NotificationStore, userID, notifType string) []domain.Notification {
	t.Helper()
	all, err := store.ListNotifications(context.Background(), userID, false, 0)
	require.NoError(t, err)
	var out []domain.Notification
	for _, n := range all {
		if n.Type == notifType {
			out = append(out, n)
		}
	}
	return out
}

func TestGenerate_FlightTomorrowIsIdempotent(t *testing.T) {
	mem := newStore()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana", Destination: "Rome", DepartureDate: day(1)})
	seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Later", DepartureDate: day(2)})
	gen := newGenerator(mem, nil)
	ctx := context.Background()

	first, err := gen.Generate(ctx, agent("agent-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created[domain.NotifFlightTomorrow])

	second, err := gen.Generate(ctx, agent("agent-1"))
	require.NoError(t, err)
	assert.Zero(t, second.Created[domain.NotifFlightTomorrow])
	assert.Equal(t, 1, second.Skipped[domain.NotifFlightTomorrow])

	got := notificationsOf(t, mem, "agent-1", domain.NotifFlightTomorrow)
	require.Len(t, got, 1)
	assert.Equal(t, lead.ID, got[0].Data[domain.DataLeadID])
}

func TestGenerate_OnlyOwnLeads(t *testing.T) {
	mem := newStore()
	seedLead(mem, domain.Lead{UserID: "agent-2", Name: "Other", DepartureDate: day(1)})
	gen := newGenerator(mem, nil)

	report, err := gen.Generate(context.Background(), agent("agent-1"))
	require.NoError(t, err)
	assert.Zero(t, report.LeadsScanned)
	assert.Empty(t, notificationsOf(t, mem, "agent-1", domain.NotifFlightTomorrow))
	assert.Empty(t, notificationsOf(t, mem, "agent-2", domain.NotifFlightTomorrow))
}

func TestGenerate_CustomerReturnedWindow(t *testing.T) {
	mem := newStore()
	inWindow := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Back", Status: domain.StatusFlying, ReturnDate: day(-2)})
	seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Today", Status: domain.StatusFlying, ReturnDate: day(0)})
	seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Old", Status: domain.StatusFlying, ReturnDate: day(-3)})
	seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Future", Status: domain.StatusFlying, ReturnDate: day(1)})
	seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Paid", Status: domain.StatusPaid, ReturnDate: day(-1)})
	gen := newGenerator(mem, nil)

	report, err := gen.Generate(context.Background(), agent("agent-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created[domain.NotifCustomerReturned])

	ids := []any{}
	for _, n := range notificationsOf(t, mem, "agent-1", domain.NotifCustomerReturned) {
		ids = append(ids, n.Data[domain.DataLeadID])
	}
	assert.Contains(t, ids, inWindow.ID)
}

func TestGenerate_DocumentScope(t *testing.T) {
	mem := newStore()
	ctx := context.Background()
	own := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Mine"})
	other := seedLead(mem, domain.Lead{UserID: "agent-2", Name: "Theirs"})

	mine, err := mem.CreateDocument(ctx, &domain.Document{LeadID: own.ID, Type: domain.DocPassport, ExpiryDate: day(5)})
	require.NoError(t, err)
	_, err = mem.CreateDocument(ctx, &domain.Document{LeadID: own.ID, Type: domain.DocVisa, ExpiryDate: day(45)})
	require.NoError(t, err)
	_, err = mem.CreateDocument(ctx, &domain.Document{LeadID: own.ID, Type: domain.DocVisa, ExpiryDate: day(-1)})
	require.NoError(t, err)
	_, err = mem.CreateDocument(ctx, &domain.Document{LeadID: other.ID, Type: domain.DocPassport, ExpiryDate: day(3)})
	require.NoError(t, err)

	gen := newGenerator(mem, nil)

	report, err := gen.Generate(ctx, agent("agent-1"))
	require.NoError(t, err)
	assert.False(t, report.GlobalDocuments)
	assert.Equal(t, 1, report.DocumentsScoped)

	got := notificationsOf(t, mem, "agent-1", domain.NotifDocumentExpiring)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].Data[domain.DataDocID])
	assert.Equal(t, own.ID, got[0].Data[domain.DataLeadID])
	assert.EqualValues(t, 5, got[0].Data["daysLeft"])

	adminReport, err := gen.Generate(ctx, admin("admin-1"))
	require.NoError(t, err)
	assert.True(t, adminReport.GlobalDocuments)
	assert.Equal(t, 2, adminReport.DocumentsScoped)
	assert.Len(t, notificationsOf(t, mem, "admin-1", domain.NotifDocumentExpiring), 2)
}

func TestGenerate_DocumentsQueriedInChunks(t *testing.T) {
	mem := newStore()
	ctx := context.Background()
	var leads []*domain.Lead
	for range 250 {
		leads = append(leads, seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Lead"}))
	}
	for i, exp := range map[int]string{0: day(5), 120: day(45), 249: day(10)} {
		_, err := mem.CreateDocument(ctx, &domain.Document{LeadID: leads[i].ID, Type: domain.DocPassport, ExpiryDate: exp})
		require.NoError(t, err)
	}
	store := &countingStore{RecordStore: mem}

	report, err := newGenerator(store, nil).Generate(ctx, agent("agent-1"))
	require.NoError(t, err)
	assert.Equal(t, 250, report.LeadsScanned)
	assert.Equal(t, 2, report.DocumentsScoped)
	assert.Equal(t, []int{50, 100, 100}, store.batches())
	assert.Len(t, notificationsOf(t, mem, "agent-1", domain.NotifDocumentExpiring), 2)
}

func TestGenerate_FailedCheckStillCreates(t *testing.T) {
	mem := newStore()
	seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana", DepartureDate: day(1)})
	store := &countingStore{RecordStore: mem, checkErr: errStoreDown}
	gen := newGenerator(store, nil)
	ctx := context.Background()

	for range 2 {
		report, err := gen.Generate(ctx, agent("agent-1"))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Created[domain.NotifFlightTomorrow])
		assert.Equal(t, 1, report.CheckFailures)
	}
	// Duplicates are the accepted cost of failing open.
	assert.Len(t, notificationsOf(t, mem, "agent-1", domain.NotifFlightTomorrow), 2)
	assert.EqualValues(t, 2, store.createCalls.Load())
}

func TestGenerate_DispatchFailureDoesNotFailInsert(t *testing.T) {
	mem := newStore()
	seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana", DepartureDate: day(1)})
	dispatcher := &recordingDispatcher{err: errStoreDown}
	gen := newGenerator(mem, dispatcher)

	report, err := gen.Generate(context.Background(), agent("agent-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created[domain.NotifFlightTomorrow])
	require.Len(t, dispatcher.events, 1)
	assert.Equal(t, "agent-1", dispatcher.events[0].UserID)
	assert.Equal(t, domain.NotifFlightTomorrow, dispatcher.events[0].Type)
}
