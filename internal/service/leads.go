package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var leadTracer = otel.Tracer("service/leads")

// LeadService is lead CRUD with owner scoping: agents see their own leads,
// admins and developers see every lead.
type LeadService struct {
	leads  port.LeadStore
	docs   port.DocumentStore
	files  port.FileStorage
	logger *zap.Logger
}

// NewLeadService creates a lead service.
func NewLeadService(leads port.LeadStore, docs port.DocumentStore, files port.FileStorage, logger *zap.Logger) *LeadService {
	return &LeadService{leads: leads, docs: docs, files: files, logger: logger}
}

func (s *LeadService) List(ctx context.Context, profile *domain.Profile, filter domain.LeadFilter) ([]domain.Lead, error) {
	ctx, span := leadTracer.Start(ctx, "LeadService.List")
	defer span.End()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown status"}
	}
	filter.UserID = ""
	if !profile.SeesAllRecords() {
		filter.UserID = profile.ID
	}
	return s.leads.ListLeads(ctx, filter)
}

// Get returns the lead when the profile may see it. Leads owned by
// somebody else are reported as not found.
func (s *LeadService) Get(ctx context.Context, profile *domain.Profile, id string) (*domain.Lead, error) {
	ctx, span := leadTracer.Start(ctx, "LeadService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("lead.id", id))

	lead, err := s.leads.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if !profile.SeesAllRecords() && lead.UserID != profile.ID {
		return nil, &domain.ErrNotFound{Resource: "lead", ID: id}
	}
	return lead, nil
}

// Create inserts a new lead owned by the profile, always at the first stage.
func (s *LeadService) Create(ctx context.Context, profile *domain.Profile, req domain.CreateLeadRequest) (*domain.Lead, error) {
	ctx, span := leadTracer.Start(ctx, "LeadService.Create")
	defer span.End()

	if strings.TrimSpace(req.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if err := validateSource(req.Source); err != nil {
		return nil, err
	}
	if err := validateTags(req.Tags); err != nil {
		return nil, err
	}
	for field, v := range map[string]string{"departure_date": req.DepartureDate, "return_date": req.ReturnDate} {
		if err := validateDate(field, v); err != nil {
			return nil, err
		}
	}
	if req.Adults < 0 || req.Children < 0 || req.Infants < 0 {
		return nil, &domain.ErrValidation{Field: "adults", Message: "traveller counts cannot be negative"}
	}

	lead := &domain.Lead{
		UserID:        profile.ID,
		Status:        domain.StatusLead,
		Name:          strings.TrimSpace(req.Name),
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
		Destination:   strings.TrimSpace(req.Destination),
		DepartureDate: req.DepartureDate,
		ReturnDate:    req.ReturnDate,
		VacationType:  req.VacationType,
		HotelLevel:    req.HotelLevel,
		BoardBasis:    req.BoardBasis,
		Adults:        req.Adults,
		Children:      req.Children,
		Infants:       req.Infants,
		Budget:        req.Budget,
		Notes:         req.Notes,
		Tags:          req.Tags,
		Source:        req.Source,
	}
	created, err := s.leads.CreateLead(ctx, lead)
	if err != nil {
		return nil, persistenceError("create lead", err)
	}

	s.logger.Info("lead created", zap.String("lead_id", created.ID), zap.String("user_id", profile.ID))
	return created, nil
}

// Update applies a field patch. Status is only changed through transitions.
func (s *LeadService) Update(ctx context.Context, profile *domain.Profile, id string, patch map[string]any) (*domain.Lead, error) {
	ctx, span := leadTracer.Start(ctx, "LeadService.Update")
	defer span.End()

	if len(patch) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "empty patch"}
	}
	clean, err := sanitizePatch(patch)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, profile, id); err != nil {
		return nil, err
	}

	if err := s.leads.UpdateLead(ctx, id, clean); err != nil {
		return nil, persistenceError("update lead "+id, err)
	}
	return s.leads.GetLead(ctx, id)
}

// Delete removes the lead, its document records and, best effort, their files.
func (s *LeadService) Delete(ctx context.Context, profile *domain.Profile, id string) error {
	ctx, span := leadTracer.Start(ctx, "LeadService.Delete")
	defer span.End()

	if _, err := s.Get(ctx, profile, id); err != nil {
		return err
	}
	docs, err := s.docs.ListDocuments(ctx, id)
	if err != nil {
		return err
	}
	if err := s.leads.DeleteLead(ctx, id); err != nil {
		return persistenceError("delete lead "+id, err)
	}

	for _, d := range docs {
		if d.StoragePath == "" {
			continue
		}
		if err := s.files.Remove(ctx, d.StoragePath); err != nil {
			s.logger.Warn("orphaned document file", zap.String("path", d.StoragePath), zap.Error(err))
		}
	}
	s.logger.Info("lead deleted", zap.String("lead_id", id), zap.Int("documents", len(docs)))
	return nil
}

// sanitizePatch checks every column of an update patch against its storage
// shape and vocabulary, returning the normalized values.
func sanitizePatch(patch map[string]any) (map[string]any, error) {
	clean := make(map[string]any, len(patch))
	for k, v := range patch {
		switch {
		case k == "status":
			return nil, &domain.ErrValidation{Field: k, Message: "status changes go through transitions"}
		case !domain.IsLeadField(k):
			return nil, &domain.ErrValidation{Field: k, Message: "unknown field"}
		}

		norm, err := normalizeField(k, v)
		if err != nil {
			return nil, err
		}
		clean[k] = norm
	}
	return clean, nil
}

func normalizeField(k string, v any) (any, error) {
	switch domain.LeadFieldKind(k) {
	case domain.FieldTags:
		tags, err := toStrings(v)
		if err != nil {
			return nil, err
		}
		if err := validateTags(tags); err != nil {
			return nil, err
		}
		return tags, nil

	case domain.FieldDate:
		if v == nil {
			return nil, nil
		}
		str, ok := v.(string)
		if !ok {
			return nil, &domain.ErrValidation{Field: k, Message: "expected YYYY-MM-DD"}
		}
		if str == "" {
			return nil, nil
		}
		if err := validateDate(k, str); err != nil {
			return nil, err
		}
		return str, nil

	case domain.FieldInt:
		n, ok := toNumber(v)
		if !ok || n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
			return nil, &domain.ErrValidation{Field: k, Message: "expected a whole non-negative number"}
		}
		return int(n), nil

	case domain.FieldNumber:
		if v == nil {
			return nil, nil
		}
		n, ok := toNumber(v)
		if !ok {
			return nil, &domain.ErrValidation{Field: k, Message: "expected a number"}
		}
		return n, nil

	case domain.FieldBool:
		b, ok := v.(bool)
		if !ok {
			return nil, &domain.ErrValidation{Field: k, Message: "expected true or false"}
		}
		return b, nil
	}

	if v == nil {
		return "", nil
	}
	str, ok := v.(string)
	if !ok {
		return nil, &domain.ErrValidation{Field: k, Message: "expected text"}
	}
	if k == "source" {
		if err := validateSource(str); err != nil {
			return nil, err
		}
	}
	return str, nil
}

func toNumber(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case float32:
		n = float64(t)
	case float64:
		n = t
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func toStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, &domain.ErrValidation{Field: "tags", Message: "tags must be strings"}
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, &domain.ErrValidation{Field: "tags", Message: "tags must be a list"}
}

func validateSource(src string) error {
	if src != "" && !slices.Contains(domain.LeadSources, src) {
		return &domain.ErrValidation{Field: "source", Message: fmt.Sprintf("unknown source %q", src)}
	}
	return nil
}

func validateTags(tags []string) error {
	for _, t := range tags {
		if !slices.Contains(domain.LeadTags, t) {
			return &domain.ErrValidation{Field: "tags", Message: fmt.Sprintf("unknown tag %q", t)}
		}
	}
	return nil
}

func validateDate(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, domain.DateOnly(v)); err != nil {
		return &domain.ErrValidation{Field: field, Message: "expected YYYY-MM-DD"}
	}
	return nil
}

// persistenceError keeps not-found and circuit errors as they are and
// reports anything else as a failed save.
func persistenceError(op string, err error) error {
	var nf *domain.ErrNotFound
	var open *domain.ErrCircuitOpen
	var val *domain.ErrValidation
	if errors.As(err, &nf) || errors.As(err, &open) || errors.As(err, &val) {
		return err
	}
	return &domain.ErrPersistence{Operation: op, Err: err}
}
