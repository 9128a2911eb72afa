package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/observability"
	"github.com/boddenberg/travel-crm-go/internal/infra/resilience"
	"github.com/boddenberg/travel-crm-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashboardTracer = otel.Tracer("service/dashboard")

const (
	departureHorizonDays = 7
	documentChunkSize    = 100
	unreadCountLimit     = 500
)

// DashboardService aggregates the home screen figures.
type DashboardService struct {
	leads    *LeadService
	docs     port.DocumentStore
	notifs   port.NotificationStore
	expiry   *DocumentService
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
	loc      *time.Location
}

// NewDashboardService creates a dashboard service.
func NewDashboardService(leads *LeadService, docs port.DocumentStore, notifs port.NotificationStore, expiry *DocumentService, maxConcurrency int, metrics *observability.Metrics, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		leads:    leads,
		docs:     docs,
		notifs:   notifs,
		expiry:   expiry,
		bulkhead: resilience.NewBulkhead(maxConcurrency),
		metrics:  metrics,
		logger:   logger,
		now:      expiry.cfg.Now,
		loc:      expiry.cfg.Location,
	}
}

var revenueStatuses = map[domain.LeadStatus]bool{
	domain.StatusPaid:     true,
	domain.StatusFlying:   true,
	domain.StatusReturned: true,
}

// Get builds the dashboard for the profile's visible leads. Document
// chunks and the unread count are fetched concurrently.
func (s *DashboardService) Get(ctx context.Context, profile *domain.Profile) (*domain.Dashboard, error) {
	ctx, span := dashboardTracer.Start(ctx, "DashboardService.Get")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("dashboard.get", time.Since(start)) }()

	leads, err := s.leads.List(ctx, profile, domain.LeadFilter{})
	if err != nil {
		return nil, err
	}

	var (
		docs   []domain.Document
		unread int
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		docs, err = documentsByChunk(egCtx, s.bulkhead, leads, s.docs.ListDocumentsForLeads)
		return err
	})
	eg.Go(func() error {
		rows, err := s.notifs.ListNotifications(egCtx, profile.ID, true, unreadCountLimit)
		if err != nil {
			return err
		}
		unread = len(rows)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	dash := SummarizeLeads(leads, now)
	dash.Documents = s.expiry.Summarize(docs, now)
	dash.UnreadNotifications = unread

	s.logger.Debug("dashboard built",
		zap.String("profile_id", profile.ID),
		zap.Int("leads", len(leads)),
		zap.Int("documents", len(docs)),
	)
	return dash, nil
}

// SummarizeLeads computes the lead figures of the dashboard.
func SummarizeLeads(leads []domain.Lead, now time.Time) *domain.Dashboard {
	today := midnight(now)
	horizon := today.AddDate(0, 0, departureHorizonDays)

	counts := make(map[domain.LeadStatus]int, len(domain.Pipeline))
	dash := &domain.Dashboard{
		TotalLeads:         len(leads),
		UpcomingDepartures: []domain.UpcomingDeparture{},
		GeneratedAt:        now,
	}

	for _, l := range leads {
		counts[l.Status]++

		if revenueStatuses[l.Status] {
			if l.TotalPrice != nil {
				dash.Revenue += *l.TotalPrice
			}
			if l.Commission != nil {
				dash.Commission += *l.Commission
			}
		}

		if (l.Status == domain.StatusProposalSent || l.Status == domain.StatusPaid) && !l.DepositPaid {
			dash.OutstandingDeposits++
			if l.DepositAmount != nil {
				dash.OutstandingAmount += *l.DepositAmount
			}
		}

		dep, err := domain.ParseDate(l.DepartureDate, now.Location())
		if err != nil || dep == nil {
			continue
		}
		if !dep.Before(today) && !dep.After(horizon) {
			dash.UpcomingDepartures = append(dash.UpcomingDepartures, domain.UpcomingDeparture{
				LeadID:        l.ID,
				Name:          l.Name,
				Destination:   l.Destination,
				DepartureDate: domain.DateOnly(l.DepartureDate),
				DaysUntil:     domain.DaysRemaining(*dep, today),
			})
		}
	}

	for _, st := range domain.Pipeline {
		dash.ByStatus = append(dash.ByStatus, domain.StatusCount{StatusMeta: st.Meta(), Count: counts[st]})
	}
	sort.SliceStable(dash.UpcomingDepartures, func(i, j int) bool {
		return dash.UpcomingDepartures[i].DaysUntil < dash.UpcomingDepartures[j].DaysUntil
	})

	if len(leads) > 0 {
		converted := counts[domain.StatusPaid] + counts[domain.StatusFlying] + counts[domain.StatusReturned]
		dash.ConversionRate = float64(converted) / float64(len(leads))
	}
	return dash
}

// documentsByChunk runs fetch over the lead ids in chunks of
// documentChunkSize, holding a bulkhead slot per call, and returns the
// merged rows ordered by expiry date.
func documentsByChunk(ctx context.Context, bulkhead *resilience.Bulkhead, leads []domain.Lead, fetch func(context.Context, []string) ([]domain.Document, error)) ([]domain.Document, error) {
	var mu sync.Mutex
	docs := []domain.Document{}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, chunk := range chunkLeadIDs(leads, documentChunkSize) {
		eg.Go(func() error {
			if err := bulkhead.Acquire(egCtx); err != nil {
				return err
			}
			defer bulkhead.Release()

			part, err := fetch(egCtx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			docs = append(docs, part...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i].ExpiryDate, docs[j].ExpiryDate
		if a != b {
			if a == "" || b == "" {
				return b == ""
			}
			return a < b
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func chunkLeadIDs(leads []domain.Lead, size int) [][]string {
	var out [][]string
	for i := 0; i < len(leads); i += size {
		end := min(i+size, len(leads))
		ids := make([]string, 0, end-i)
		for _, l := range leads[i:end] {
			ids = append(ids, l.ID)
		}
		out = append(out, ids)
	}
	return out
}
