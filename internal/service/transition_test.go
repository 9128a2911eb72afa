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

func newTransitionService(store *countingStore) *service.TransitionService {
	return service.NewTransitionService(store, observability.NewMetrics(), zap.NewNop())
}

func TestPrepareForward_NeverSkipsAStage(t *testing.T) {
	svc := newTransitionService(&countingStore{RecordStore: newStore()})

	for i, st := range domain.Pipeline[:len(domain.Pipeline)-1] {
		out := svc.PrepareForward(&domain.Lead{ID: "l1", Status: st})
		assert.True(t, out.HasNext, st)
		assert.Equal(t, domain.Pipeline[i+1], out.Next, st)
	}
}

func TestPrepareForward_TerminalIsNoop(t *testing.T) {
	svc := newTransitionService(&countingStore{RecordStore: newStore()})

	out := svc.PrepareForward(&domain.Lead{ID: "l1", Status: domain.StatusReturned})
	assert.False(t, out.HasNext)
	assert.Empty(t, out.Next)
	assert.Empty(t, out.Missing)
	assert.Empty(t, out.ExtraInputs)
}

func TestPrepareForward_PrefillsInputs(t *testing.T) {
	svc := newTransitionService(&countingStore{RecordStore: newStore()})

	out := svc.PrepareForward(&domain.Lead{ID: "l1", Status: domain.StatusLead, TotalPrice: ptr(12500)})
	require.Len(t, out.ExtraInputs, 2)
	assert.Equal(t, "total_price", out.ExtraInputs[0].Field)
	assert.Equal(t, "12500", out.ExtraInputs[0].Value)
	assert.Equal(t, "commission", out.ExtraInputs[1].Field)
	assert.Equal(t, "", out.ExtraInputs[1].Value)
}

func TestPrepareBackward(t *testing.T) {
	svc := newTransitionService(&countingStore{RecordStore: newStore()})

	first := svc.PrepareBackward(&domain.Lead{ID: "l1", Status: domain.StatusLead})
	assert.False(t, first.HasPrev)

	paid := svc.PrepareBackward(&domain.Lead{ID: "l1", Status: domain.StatusPaid})
	assert.True(t, paid.HasPrev)
	assert.Equal(t, domain.StatusProposalSent, paid.Prev)
}

func TestComputeMissingRequired_OrderAndRequiredOnly(t *testing.T) {
	lead := &domain.Lead{Status: domain.StatusPaid}
	// email is optional on paid -> flying and must not appear.
	missing := service.ComputeMissingRequired(lead, domain.StatusPaid, domain.StatusFlying)
	assert.Equal(t, []string{"טלפון", "תאריך יציאה"}, missing)

	lead.Phone = "050-1234567"
	lead.DepartureDate = day(3)
	assert.Empty(t, service.ComputeMissingRequired(lead, domain.StatusPaid, domain.StatusFlying))
}

func TestComputeMissingRequired_ZeroAndFalseAreEmpty(t *testing.T) {
	lead := &domain.Lead{Status: domain.StatusProposalSent, DepositAmount: ptr(0), DepositPaid: false}
	missing := service.ComputeMissingRequired(lead, domain.StatusProposalSent, domain.StatusPaid)
	assert.Equal(t, []string{"סכום מקדמה", "מקדמה שולמה"}, missing)
}

func TestComputeMissingRequired_UnknownPairIsPermissive(t *testing.T) {
	assert.Empty(t, service.ComputeMissingRequired(&domain.Lead{}, domain.StatusLead, domain.StatusReturned))
}

func TestExecute_MissingFieldsBlocksWithoutWriting(t *testing.T) {
	mem := newStore()
	lead := seedLead(mem, domain.Lead{
		UserID:        "agent-1",
		Name:          "Dana",
		DepartureDate: day(20),
		ReturnDate:    day(27),
	})
	store := &countingStore{RecordStore: mem}
	svc := newTransitionService(store)

	_, err := svc.Execute(context.Background(), lead, domain.StatusProposalSent, map[string]string{"total_price": "1500"}, false)

	var missing *domain.ErrMissingFields
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"יעד", "מחיר כולל", "עמלה"}, missing.MissingFields)
	assert.Equal(t, domain.StatusLead, missing.From)
	assert.Equal(t, domain.StatusProposalSent, missing.To)
	assert.Zero(t, store.updates.Load())

	stored, err := mem.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLead, stored.Status)
}

func TestExecute_ForcePersistsAndCoercesInputs(t *testing.T) {
	mem := newStore()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana"})
	store := &countingStore{RecordStore: mem}
	svc := newTransitionService(store)

	updated, err := svc.Execute(context.Background(), lead, domain.StatusProposalSent,
		map[string]string{"total_price": "1500", "commission": "", "destination": "Rome"}, true)
	require.NoError(t, err)

	assert.EqualValues(t, 1, store.updates.Load())
	assert.Equal(t, domain.StatusProposalSent, updated.Status)
	require.NotNil(t, updated.TotalPrice)
	assert.Equal(t, 1500.0, *updated.TotalPrice)
	assert.Nil(t, updated.Commission)
	assert.Equal(t, "Rome", updated.Destination)
}

func TestExecute_BackwardIgnoresValidationAndInputs(t *testing.T) {
	mem := newStore()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana", Status: domain.StatusPaid})
	store := &countingStore{RecordStore: mem}
	svc := newTransitionService(store)

	updated, err := svc.Execute(context.Background(), lead, domain.StatusProposalSent, map[string]string{"notes": "ignored"}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProposalSent, updated.Status)
	assert.Empty(t, updated.Notes)
}

func TestExecute_RejectsNonAdjacentTarget(t *testing.T) {
	mem := newStore()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana"})
	store := &countingStore{RecordStore: mem}
	svc := newTransitionService(store)

	_, err := svc.Execute(context.Background(), lead, domain.StatusPaid, nil, true)
	var invalid *domain.ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, store.updates.Load())

	_, err = svc.Execute(context.Background(), lead, domain.LeadStatus("cancelled"), nil, true)
	require.ErrorAs(t, err, &invalid)
}

func TestExecute_RejectsUnknownInputField(t *testing.T) {
	mem := newStore()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana"})
	store := &countingStore{RecordStore: mem}
	svc := newTransitionService(store)

	_, err := svc.Execute(context.Background(), lead, domain.StatusProposalSent, map[string]string{"status": "returned"}, true)
	var val *domain.ErrValidation
	require.ErrorAs(t, err, &val)
	assert.Zero(t, store.updates.Load())
}

func TestExecute_ValidatesCollectedInputs(t *testing.T) {
	for name, inputs := range map[string]map[string]string{
		"source and date": {"source": "carrier-pigeon", "departure_date": "not-a-date"},
		"source":          {"source": "carrier-pigeon"},
		"date":            {"return_date": "31/12/2026"},
		"tags":            {"tags": "vip"},
		"adults":          {"adults": "two"},
		"fractional":      {"children": "1.5"},
		"price":           {"total_price": "lots"},
		"flag":            {"deposit_paid": "maybe"},
	} {
		t.Run(name, func(t *testing.T) {
			mem := newStore()
			lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana"})
			store := &countingStore{RecordStore: mem}
			svc := newTransitionService(store)

			_, err := svc.Execute(context.Background(), lead, domain.StatusProposalSent, inputs, true)
			var val *domain.ErrValidation
			require.ErrorAs(t, err, &val)
			assert.Zero(t, store.updates.Load())

			stored, err := mem.GetLead(context.Background(), lead.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusLead, stored.Status)
		})
	}
}

func TestExecute_InputsFollowColumnShape(t *testing.T) {
	mem := newStore()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana", Status: domain.StatusProposalSent})
	svc := newTransitionService(&countingStore{RecordStore: mem})

	updated, err := svc.Execute(context.Background(), lead, domain.StatusPaid, map[string]string{
		"phone":          "0501234567",
		"adults":         "2",
		"deposit_paid":   "true",
		"deposit_amount": "500",
		"source":         "referral",
		"departure_date": "2026-03-01",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "0501234567", updated.Phone)
	assert.Equal(t, 2, updated.Adults)
	assert.True(t, updated.DepositPaid)
	require.NotNil(t, updated.DepositAmount)
	assert.Equal(t, 500.0, *updated.DepositAmount)
	assert.Equal(t, "referral", updated.Source)
	assert.Equal(t, "2026-03-01", updated.DepartureDate)
}

func TestExecute_ReloadFailureReturnsAppliedState(t *testing.T) {
	mem := newStore()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana"})
	store := &countingStore{RecordStore: mem, getErr: errStoreDown}
	svc := newTransitionService(store)

	updated, err := svc.Execute(context.Background(), lead, domain.StatusProposalSent,
		map[string]string{"total_price": "1500", "destination": "Rome"}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, store.updates.Load())
	assert.Equal(t, domain.StatusProposalSent, updated.Status)
	assert.Equal(t, "Rome", updated.Destination)
	require.NotNil(t, updated.TotalPrice)
	assert.Equal(t, 1500.0, *updated.TotalPrice)
	assert.Equal(t, lead.ID, updated.ID)
	assert.Equal(t, "Dana", updated.Name)
}

func TestExecute_StoreFailureIsPersistenceError(t *testing.T) {
	mem := newStore()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana"})
	store := &countingStore{RecordStore: mem, updateErr: errStoreDown}
	svc := newTransitionService(store)

	_, err := svc.Execute(context.Background(), lead, domain.StatusProposalSent, nil, true)
	var pe *domain.ErrPersistence
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestAdvanceAndRegress(t *testing.T) {
	mem := newStore()
	lead := seedLead(mem, domain.Lead{UserID: "agent-1", Name: "Dana", Status: domain.StatusFlying, ReturnDate: day(-1)})
	svc := newTransitionService(&countingStore{RecordStore: mem})
	ctx := context.Background()

	returned, err := svc.Advance(ctx, lead, domain.AdvanceRequest{Inputs: map[string]string{"notes": "great trip"}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReturned, returned.Status)
	assert.Equal(t, "great trip", returned.Notes)

	_, err = svc.Advance(ctx, returned, domain.AdvanceRequest{})
	var invalid *domain.ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)

	back, err := svc.Regress(ctx, returned)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFlying, back.Status)
}

func TestCoerceInput(t *testing.T) {
	tests := []struct {
		in     string
		want   any
		wantOK bool
	}{
		{"1500", 1500.0, true},
		{"abc", "abc", true},
		{"", nil, false},
		{"  ", 0.0, true},
		{" 42 ", 42.0, true},
		{"-3.5", -3.5, true},
		{".5", 0.5, true},
		{"1e3", 1000.0, true},
		{"0x1F", 31.0, true},
		{"0b101", 5.0, true},
		{"0o17", 15.0, true},
		{"12abc", "12abc", true},
		{"Infinity", "Infinity", true},
		{"1e999", "1e999", true},
		{"1,500", "1,500", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := service.CoerceInput(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipeline(t *testing.T) {
	svc := newTransitionService(&countingStore{RecordStore: newStore()})
	info := svc.Pipeline()
	require.Len(t, info.Statuses, 5)
	require.Len(t, info.Requirements, 4)
	assert.Equal(t, domain.StatusLead, info.Requirements[0].From)
	assert.Equal(t, domain.StatusProposalSent, info.Requirements[0].To)
}
