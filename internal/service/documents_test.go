package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/port"
	"github.com/boddenberg/travel-crm-go/internal/service"
)

func newDocumentService(docs port.DocumentStore, leads *service.LeadService, files port.FileStorage) *service.DocumentService {
	cfg := service.DocumentConfig{Location: testLoc, WarningDays: 30, UpcomingDays: 90, Now: clock}
	return service.NewDocumentService(docs, leads, files, cfg, zap.NewNop())
}

func TestClassify(t *testing.T) {
	svc := newDocumentService(newStore(), nil, newFakeFiles())

	tests := []struct {
		name   string
		expiry string
		want   domain.ExpiryState
	}{
		{"yesterday", day(-1), domain.ExpiryExpired},
		{"ten days", day(10), domain.ExpiryWarning},
		{"two hundred days", day(200), domain.ExpiryOK},
		{"no date", "", domain.ExpiryNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := svc.Classify(domain.Document{ExpiryDate: tt.expiry}, fixedNow)
			assert.Equal(t, tt.want, view.ExpiryState)
			if tt.expiry == "" {
				assert.Nil(t, view.DaysRemaining)
			} else {
				assert.NotNil(t, view.DaysRemaining)
			}
		})
	}
}

func TestDocumentService_UploadAndList(t *testing.T) {
	mem := newStore()
	files := newFakeFiles()
	leads := newLeadService(mem, files)
	svc := newDocumentService(mem, leads, files)
	ctx := context.Background()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana"})

	view, err := svc.Upload(ctx, agent("agent-1"), domain.UploadDocumentRequest{
		LeadID:     lead.ID,
		Type:       domain.DocPassport,
		FileName:   "../Dana passport.pdf",
		ExpiryDate: day(10),
	}, strings.NewReader("%PDF"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(view.StoragePath, lead.ID+"/"))
	assert.True(t, strings.HasSuffix(view.StoragePath, "-Dana_passport.pdf"))
	assert.Equal(t, "../Dana passport.pdf", view.Name)
	assert.Equal(t, "https://files.test/"+view.StoragePath, view.URL)
	assert.Equal(t, domain.ExpiryWarning, view.ExpiryState)
	assert.Contains(t, files.objects, view.StoragePath)

	list, err := svc.List(ctx, agent("agent-1"), lead.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, view.ID, list[0].ID)

	_, err = svc.List(ctx, agent("agent-2"), lead.ID)
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
}

func TestDocumentService_UploadValidation(t *testing.T) {
	mem := newStore()
	files := newFakeFiles()
	svc := newDocumentService(mem, newLeadService(mem, files), files)
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana"})

	for name, req := range map[string]domain.UploadDocumentRequest{
		"type":        {LeadID: lead.ID, Type: "selfie", FileName: "a.jpg"},
		"expiry_date": {LeadID: lead.ID, Type: domain.DocVisa, FileName: "a.jpg", ExpiryDate: "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), agent("agent-1"), req, strings.NewReader("x"))
			var val *domain.ErrValidation
			require.ErrorAs(t, err, &val)
			assert.Equal(t, name, val.Field)
		})
	}
	assert.Empty(t, files.objects)
}

// failingDocs rejects every insert.
type failingDocs struct {
	port.RecordStore
}

func (failingDocs) CreateDocument(context.Context, *domain.Document) (*domain.Document, error) {
	return nil, errStoreDown
}

func TestDocumentService_UploadRollsBackFile(t *testing.T) {
	mem := newStore()
	files := newFakeFiles()
	svc := newDocumentService(failingDocs{mem}, newLeadService(mem, files), files)
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana"})

	_, err := svc.Upload(context.Background(), agent("agent-1"), domain.UploadDocumentRequest{
		LeadID: lead.ID, Type: domain.DocTicket, FileName: "ticket.pdf",
	}, strings.NewReader("x"))

	var pe *domain.ErrPersistence
	require.ErrorAs(t, err, &pe)
	assert.Empty(t, files.objects)
	assert.Len(t, files.removed, 1)
}

func TestDocumentService_DeleteChecksOwnership(t *testing.T) {
	mem := newStore()
	files := newFakeFiles()
	svc := newDocumentService(mem, newLeadService(mem, files), files)
	ctx := context.Background()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana"})

	view, err := svc.Upload(ctx, agent("agent-1"), domain.UploadDocumentRequest{
		LeadID: lead.ID, Type: domain.DocVoucher, FileName: "voucher.pdf",
	}, strings.NewReader("x"))
	require.NoError(t, err)

	err = svc.Delete(ctx, agent("agent-2"), view.ID)
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "document", nf.Resource)

	require.NoError(t, svc.Delete(ctx, agent("agent-1"), view.ID))
	assert.Empty(t, files.objects)
}

func TestDocumentService_ExpirySummaryChunksLeadIDs(t *testing.T) {
	mem := newStore()
	files := newFakeFiles()
	store := &countingStore{RecordStore: mem}
	svc := newDocumentService(store, service.NewLeadService(mem, mem, files, zap.NewNop()), files)
	ctx := context.Background()

	for i := range 230 {
		l := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Lead"})
		if i%100 == 0 {
			_, err := mem.CreateDocument(ctx, &domain.Document{LeadID: l.ID, Type: domain.DocPassport, ExpiryDate: day(-2)})
			require.NoError(t, err)
		}
	}

	summary, err := svc.ExpirySummary(ctx, agent("agent-1"))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Expired)
	assert.Len(t, summary.Documents, 3)
	assert.Equal(t, []int{30, 100, 100}, store.batches())
}

func TestDocumentService_ExpirySummary(t *testing.T) {
	mem := newStore()
	files := newFakeFiles()
	svc := newDocumentService(mem, newLeadService(mem, files), files)
	ctx := context.Background()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana"})
	other := seedLead(mem, domain.Lead{UserID: "agent-2", Name: "Other"})

	for _, d := range []domain.Document{
		{LeadID: lead.ID, Type: domain.DocPassport, ExpiryDate: day(-3)},
		{LeadID: lead.ID, Type: domain.DocVisa, ExpiryDate: day(12)},
		{LeadID: lead.ID, Type: domain.DocPassport, ExpiryDate: day(60)},
		{LeadID: lead.ID, Type: domain.DocPassport, ExpiryDate: day(400)},
		{LeadID: lead.ID, Type: domain.DocContract},
		{LeadID: other.ID, Type: domain.DocPassport, ExpiryDate: day(-1)},
	} {
		_, err := mem.CreateDocument(ctx, &d)
		require.NoError(t, err)
	}

	summary, err := svc.ExpirySummary(ctx, agent("agent-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Expired)
	assert.Equal(t, 1, summary.Warning)
	assert.Equal(t, 2, summary.Upcoming)
	assert.Equal(t, 30, summary.WarningDays)
	assert.Equal(t, 90, summary.UpcomingDays)
	require.Len(t, summary.Documents, 3)
	assert.Equal(t, domain.ExpiryExpired, summary.Documents[0].ExpiryState)
}
