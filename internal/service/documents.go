package service

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/resilience"
	"github.com/boddenberg/travel-crm-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var docTracer = otel.Tracer("service/documents")

// DocumentConfig holds the expiry thresholds.
type DocumentConfig struct {
	Location       *time.Location
	WarningDays    int
	UpcomingDays   int
	// MaxConcurrency bounds the parallel document queries of one summary.
	MaxConcurrency int
	Now            func() time.Time
}

// DocumentService manages files attached to leads and classifies their expiry.
type DocumentService struct {
	docs     port.DocumentStore
	leads    *LeadService
	files    port.FileStorage
	bulkhead *resilience.Bulkhead
	cfg      DocumentConfig
	logger   *zap.Logger
}

// NewDocumentService creates a document service.
func NewDocumentService(docs port.DocumentStore, leads *LeadService, files port.FileStorage, cfg DocumentConfig, logger *zap.Logger) *DocumentService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.WarningDays <= 0 {
		cfg.WarningDays = 30
	}
	if cfg.UpcomingDays < cfg.WarningDays {
		cfg.UpcomingDays = cfg.WarningDays
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &DocumentService{
		docs:     docs,
		leads:    leads,
		files:    files,
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:      cfg,
		logger:   logger,
	}
}

// Classify attaches the expiry state and days remaining to a document.
func (s *DocumentService) Classify(doc domain.Document, now time.Time) domain.DocumentView {
	view := domain.DocumentView{Document: doc, ExpiryState: domain.ExpiryNone}
	exp, err := domain.ParseDate(doc.ExpiryDate, s.cfg.Location)
	if err != nil || exp == nil {
		return view
	}
	days := domain.DaysRemaining(*exp, now)
	view.DaysRemaining = &days
	view.ExpiryState = domain.ClassifyExpiry(exp, now, s.cfg.WarningDays)
	return view
}

func (s *DocumentService) List(ctx context.Context, profile *domain.Profile, leadID string) ([]domain.DocumentView, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.List")
	defer span.End()

	if _, err := s.leads.Get(ctx, profile, leadID); err != nil {
		return nil, err
	}
	docs, err := s.docs.ListDocuments(ctx, leadID)
	if err != nil {
		return nil, err
	}

	now := s.cfg.Now()
	out := make([]domain.DocumentView, 0, len(docs))
	for _, d := range docs {
		out = append(out, s.Classify(d, now))
	}
	return out, nil
}

// Upload stores the file, then the record. When the record insert fails
// the stored file is removed again.
func (s *DocumentService) Upload(ctx context.Context, profile *domain.Profile, req domain.UploadDocumentRequest, body io.Reader) (*domain.DocumentView, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.Upload")
	defer span.End()

	if req.Type == "" {
		req.Type = domain.DocOther
	}
	if !req.Type.Valid() {
		return nil, &domain.ErrValidation{Field: "type", Message: "unknown document type"}
	}
	if req.ExpiryDate != "" {
		if _, err := domain.ParseDate(req.ExpiryDate, s.cfg.Location); err != nil {
			return nil, &domain.ErrValidation{Field: "expiry_date", Message: "expected YYYY-MM-DD"}
		}
		req.ExpiryDate = domain.DateOnly(req.ExpiryDate)
	}
	if _, err := s.leads.Get(ctx, profile, req.LeadID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = req.FileName
	}
	storagePath := path.Join(req.LeadID, uuid.NewString()+"-"+safeFileName(req.FileName))

	url, err := s.files.Upload(ctx, storagePath, req.ContentType, body)
	if err != nil {
		return nil, err
	}

	created, err := s.docs.CreateDocument(ctx, &domain.Document{
		LeadID:      req.LeadID,
		Type:        req.Type,
		Name:        name,
		ExpiryDate:  req.ExpiryDate,
		URL:         url,
		StoragePath: storagePath,
	})
	if err != nil {
		if rmErr := s.files.Remove(ctx, storagePath); rmErr != nil {
			s.logger.Warn("orphaned document file", zap.String("path", storagePath), zap.Error(rmErr))
		}
		return nil, persistenceError("create document", err)
	}

	s.logger.Info("document uploaded",
		zap.String("document_id", created.ID),
		zap.String("lead_id", req.LeadID),
		zap.String("type", string(req.Type)),
		zap.Int64("bytes", req.Size),
	)
	view := s.Classify(*created, s.cfg.Now())
	return &view, nil
}

// Delete removes the record, then the file on a best-effort basis.
func (s *DocumentService) Delete(ctx context.Context, profile *domain.Profile, id string) error {
	ctx, span := docTracer.Start(ctx, "DocumentService.Delete")
	defer span.End()

	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.leads.Get(ctx, profile, doc.LeadID); err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return &domain.ErrNotFound{Resource: "document", ID: id}
		}
		return err
	}

	if err := s.docs.DeleteDocument(ctx, id); err != nil {
		return persistenceError("delete document "+id, err)
	}
	if doc.StoragePath != "" {
		if err := s.files.Remove(ctx, doc.StoragePath); err != nil {
			s.logger.Warn("orphaned document file", zap.String("path", doc.StoragePath), zap.Error(err))
		}
	}
	return nil
}

// ExpirySummary aggregates expiry over the documents the profile can see.
func (s *DocumentService) ExpirySummary(ctx context.Context, profile *domain.Profile) (*domain.ExpirySummary, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.ExpirySummary")
	defer span.End()

	leads, err := s.leads.List(ctx, profile, domain.LeadFilter{})
	if err != nil {
		return nil, err
	}
	docs, err := documentsByChunk(ctx, s.bulkhead, leads, s.docs.ListDocumentsForLeads)
	if err != nil {
		return nil, err
	}
	summary := s.Summarize(docs, s.cfg.Now())
	return &summary, nil
}

// Summarize counts expired and warning documents and, separately, those
// expiring within the upcoming window. Only documents in one of those
// buckets are listed, soonest first.
func (s *DocumentService) Summarize(docs []domain.Document, now time.Time) domain.ExpirySummary {
	out := domain.ExpirySummary{
		WarningDays:  s.cfg.WarningDays,
		UpcomingDays: s.cfg.UpcomingDays,
		Documents:    []domain.DocumentView{},
	}
	for _, d := range docs {
		view := s.Classify(d, now)
		if view.DaysRemaining == nil {
			continue
		}
		days := *view.DaysRemaining
		upcoming := days >= 0 && days < s.cfg.UpcomingDays
		switch view.ExpiryState {
		case domain.ExpiryExpired:
			out.Expired++
		case domain.ExpiryWarning:
			out.Warning++
		}
		if upcoming {
			out.Upcoming++
		}
		if view.ExpiryState != domain.ExpiryOK || upcoming {
			out.Documents = append(out.Documents, view)
		}
	}
	sort.SliceStable(out.Documents, func(i, j int) bool {
		return *out.Documents[i].DaysRemaining < *out.Documents[j].DaysRemaining
	})
	return out
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeFileChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	return base
}
