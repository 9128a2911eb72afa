package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/observability"
	"github.com/boddenberg/travel-crm-go/internal/infra/resilience"
	"github.com/boddenberg/travel-crm-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Idempotency windows per generated type.
const (
	flightTomorrowWindow   = 24 * time.Hour
	customerReturnedWindow = 3 * 24 * time.Hour
	documentExpiringWindow = 7 * 24 * time.Hour

	returnedLookbackDays = 2
)

// GeneratorConfig tunes the proactive notification generator.
type GeneratorConfig struct {
	Location       *time.Location
	NotifyDays     int
	MaxConcurrency int
	Now            func() time.Time
}

// NotificationGenerator derives reminder notifications from lead and
// document dates. It runs on demand; repeated runs are deduplicated by a
// lookback existence check per (recipient, type, correlation id).
type NotificationGenerator struct {
	leads    port.LeadStore
	docs     port.DocumentStore
	notifs   port.NotificationStore
	notifier *Notifier
	cfg      GeneratorConfig
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewNotificationGenerator creates a generator.
func NewNotificationGenerator(store port.RecordStore, notifier *Notifier, cfg GeneratorConfig, metrics *observability.Metrics, logger *zap.Logger) *NotificationGenerator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NotifyDays <= 0 {
		cfg.NotifyDays = 30
	}
	return &NotificationGenerator{
		leads:    store,
		docs:     store,
		notifs:   store,
		notifier: notifier,
		cfg:      cfg,
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics:  metrics,
		logger:   logger,
	}
}

// candidate is one notification the scan would like to create.
type candidate struct {
	notifType string
	corrKey   string
	corrValue string
	window    time.Duration
	title     string
	body      string
	data      map[string]any
}

// Generate scans the profile's leads (and the documents in scope) and
// creates the missing reminders. Checks and inserts run concurrently and
// independently; one failure never aborts the others.
func (g *NotificationGenerator) Generate(ctx context.Context, profile *domain.Profile) (*domain.GenerationReport, error) {
	ctx, span := notifTracer.Start(ctx, "NotificationGenerator.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", profile.ID))

	start := time.Now()
	defer func() { g.metrics.RecordRequestDuration("notifications.generate", time.Since(start)) }()

	now := g.cfg.Now().In(g.cfg.Location)
	today := midnight(now)

	leads, err := g.leads.ListLeads(ctx, domain.LeadFilter{UserID: profile.ID})
	if err != nil {
		return nil, fmt.Errorf("list leads for generator: %w", err)
	}

	report := &domain.GenerationReport{
		UserID:          profile.ID,
		LeadsScanned:    len(leads),
		Created:         map[string]int{},
		Skipped:         map[string]int{},
		GlobalDocuments: profile.SeesAllRecords(),
		RanAt:           now,
	}

	candidates := leadCandidates(leads, today)

	docs, err := g.documentsInScope(ctx, profile, leads, today)
	if err != nil {
		return nil, fmt.Errorf("list documents for generator: %w", err)
	}
	report.DocumentsScoped = len(docs)
	candidates = append(candidates, documentCandidates(docs, today, g.cfg.Location)...)

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for _, c := range candidates {
		eg.Go(func() error {
			if err := g.bulkhead.Acquire(egCtx); err != nil {
				return err
			}
			defer g.bulkhead.Release()

			outcome := g.process(egCtx, profile.ID, now, c)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeCreated:
				report.Created[c.notifType]++
			case outcomeSkipped:
				report.Skipped[c.notifType]++
			case outcomeCreatedAfterCheckFailure:
				report.Created[c.notifType]++
				report.CheckFailures++
			case outcomeInsertFailed:
				report.InsertFailures++
			case outcomeInsertFailedAfterCheckFailure:
				report.InsertFailures++
				report.CheckFailures++
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return report, err
	}

	g.logger.Info("notification generator finished",
		zap.String("profile_id", profile.ID),
		zap.Int("leads", report.LeadsScanned),
		zap.Int("documents", report.DocumentsScoped),
		zap.Any("created", report.Created),
		zap.Int("check_failures", report.CheckFailures),
		zap.Int("insert_failures", report.InsertFailures),
	)
	return report, nil
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeSkipped
	outcomeCreatedAfterCheckFailure
	outcomeInsertFailed
	outcomeInsertFailedAfterCheckFailure
)

// process runs check-then-insert for one candidate. A failed existence
// check counts as "not found" so the reminder is still created.
func (g *NotificationGenerator) process(ctx context.Context, userID string, now time.Time, c candidate) outcome {
	checkFailed := false
	exists, err := g.notifs.HasRecentNotification(ctx, userID, c.notifType, c.corrKey, c.corrValue, now.Add(-c.window))
	if err != nil {
		checkFailed = true
		g.metrics.IncrCheckFailure(c.notifType)
		g.logger.Warn("notification existence check failed, creating anyway",
			zap.String("type", c.notifType),
			zap.String(c.corrKey, c.corrValue),
			zap.Error(err),
		)
	} else if exists {
		return outcomeSkipped
	}

	_, err = g.notifier.Notify(ctx, &domain.Notification{
		UserID: userID,
		Type:   c.notifType,
		Title:  c.title,
		Body:   c.body,
		Data:   c.data,
	})
	if err != nil {
		g.logger.Error("notification insert failed",
			zap.String("type", c.notifType),
			zap.String(c.corrKey, c.corrValue),
			zap.Error(err),
		)
		if checkFailed {
			return outcomeInsertFailedAfterCheckFailure
		}
		return outcomeInsertFailed
	}

	g.metrics.IncrNotificationGenerated(c.notifType)
	if checkFailed {
		return outcomeCreatedAfterCheckFailure
	}
	return outcomeCreated
}

// documentsInScope returns documents expiring in [today, today+NotifyDays].
// Admins and developers scan every document; other roles only see the
// documents attached to their own leads.
func (g *NotificationGenerator) documentsInScope(ctx context.Context, profile *domain.Profile, leads []domain.Lead, today time.Time) ([]domain.Document, error) {
	from := today.Format(time.DateOnly)
	to := today.AddDate(0, 0, g.cfg.NotifyDays).Format(time.DateOnly)

	if profile.SeesAllRecords() {
		return g.docs.ListDocumentsExpiring(ctx, from, to)
	}
	return documentsByChunk(ctx, g.bulkhead, leads, func(ctx context.Context, ids []string) ([]domain.Document, error) {
		return g.docs.ListDocumentsExpiringForLeads(ctx, ids, from, to)
	})
}

func leadCandidates(leads []domain.Lead, today time.Time) []candidate {
	tomorrow := today.AddDate(0, 0, 1).Format(time.DateOnly)
	todayStr := today.Format(time.DateOnly)
	returnedFrom := today.AddDate(0, 0, -returnedLookbackDays).Format(time.DateOnly)

	var out []candidate
	for _, l := range leads {
		if domain.DateOnly(l.DepartureDate) == tomorrow {
			out = append(out, candidate{
				notifType: domain.NotifFlightTomorrow,
				corrKey:   domain.DataLeadID,
				corrValue: l.ID,
				window:    flightTomorrowWindow,
				title:     fmt.Sprintf("טיסה מחר: %s", l.Name),
				body:      fmt.Sprintf("%s טס/ה מחר ל%s. כדאי לוודא שכל המסמכים מוכנים.", l.Name, l.Destination),
				data:      map[string]any{domain.DataLeadID: l.ID},
			})
		}

		ret := domain.DateOnly(l.ReturnDate)
		if l.Status == domain.StatusFlying && ret != "" && ret >= returnedFrom && ret <= todayStr {
			out = append(out, candidate{
				notifType: domain.NotifCustomerReturned,
				corrKey:   domain.DataLeadID,
				corrValue: l.ID,
				window:    customerReturnedWindow,
				title:     fmt.Sprintf("%s חזר/ה מחופשה", l.Name),
				body:      fmt.Sprintf("כדאי ליצור קשר עם %s לקבלת משוב על החופשה ב%s ולעדכן סטטוס.", l.Name, l.Destination),
				data:      map[string]any{domain.DataLeadID: l.ID},
			})
		}
	}
	return out
}

func documentCandidates(docs []domain.Document, today time.Time, loc *time.Location) []candidate {
	var out []candidate
	for _, d := range docs {
		exp, err := domain.ParseDate(d.ExpiryDate, loc)
		if err != nil || exp == nil {
			continue
		}
		daysLeft := domain.DaysRemaining(*exp, today)
		name := d.Name
		if name == "" {
			name = string(d.Type)
		}
		out = append(out, candidate{
			notifType: domain.NotifDocumentExpiring,
			corrKey:   domain.DataDocID,
			corrValue: d.ID,
			window:    documentExpiringWindow,
			title:     fmt.Sprintf("מסמך עומד לפוג: %s", name),
			body:      fmt.Sprintf("תוקף המסמך יפוג בעוד %d ימים (%s).", daysLeft, domain.DateOnly(d.ExpiryDate)),
			data: map[string]any{
				domain.DataDocID:  d.ID,
				domain.DataLeadID: d.LeadID,
				"daysLeft":        daysLeft,
			},
		})
	}
	return out
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
