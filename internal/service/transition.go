// Package service provides the business logic layer (use cases) of the CRM.
package service

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/observability"
	"github.com/boddenberg/travel-crm-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var transitionTracer = otel.Tracer("service/transition")

// TransitionService moves leads one stage at a time along the pipeline.
type TransitionService struct {
	leads   port.LeadStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTransitionService creates a new transition service.
func NewTransitionService(leads port.LeadStore, metrics *observability.Metrics, logger *zap.Logger) *TransitionService {
	return &TransitionService{leads: leads, metrics: metrics, logger: logger}
}

// Pipeline returns the stage vocabulary and the requirement table.
func (s *TransitionService) Pipeline() domain.PipelineInfo {
	return domain.PipelineInfo{Statuses: domain.Statuses(), Requirements: domain.RequirementTable()}
}

// ComputeMissingRequired returns, in table order, the labels of the
// required checks of (from, to) whose field is empty on the lead.
func ComputeMissingRequired(lead *domain.Lead, from, to domain.LeadStatus) []string {
	return domain.MissingRequired(lead, from, to)
}

// PrepareForward describes the next forward move. At the terminal stage
// HasNext is false and nothing else is filled in.
func (s *TransitionService) PrepareForward(lead *domain.Lead) domain.ForwardTransition {
	out := domain.ForwardTransition{
		LeadID:      lead.ID,
		From:        lead.Status,
		Missing:     []string{},
		ExtraInputs: []domain.InputField{},
	}
	next, ok := lead.Status.Next()
	if !ok {
		return out
	}

	out.Next, out.HasNext = next, true
	out.Missing = ComputeMissingRequired(lead, lead.Status, next)
	for _, in := range domain.RulesFor(lead.Status, next).Inputs {
		out.ExtraInputs = append(out.ExtraInputs, domain.InputField{
			InputDescriptor: in,
			Value:           formatValue(lead.Field(in.Field)),
		})
	}
	return out
}

// PrepareBackward describes the previous stage. Backward moves are never validated.
func (s *TransitionService) PrepareBackward(lead *domain.Lead) domain.BackwardTransition {
	out := domain.BackwardTransition{LeadID: lead.ID, From: lead.Status}
	if prev, ok := lead.Status.Prev(); ok {
		out.Prev, out.HasPrev = prev, true
	}
	return out
}

// Execute moves lead to target, which must be adjacent to its current
// stage. A forward move with missing required fields fails with
// ErrMissingFields unless force is set; nothing is written in that case.
// Collected inputs are applied on forward moves only, in the same update
// as the status.
func (s *TransitionService) Execute(ctx context.Context, lead *domain.Lead, target domain.LeadStatus, inputs map[string]string, force bool) (*domain.Lead, error) {
	ctx, span := transitionTracer.Start(ctx, "TransitionService.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("lead.id", lead.ID),
		attribute.String("transition.from", string(lead.Status)),
		attribute.String("transition.to", string(target)),
		attribute.Bool("transition.force", force),
	)

	from := lead.Status
	forward := target.Valid() && from.Valid() && target.Index() == from.Index()+1
	backward := target.Valid() && from.Valid() && target.Index() == from.Index()-1
	if !forward && !backward {
		s.metrics.IncrTransition(from, target, "invalid")
		return nil, &domain.ErrInvalidTransition{From: from, To: target}
	}

	if forward && !force {
		if missing := ComputeMissingRequired(lead, from, target); len(missing) > 0 {
			s.metrics.IncrTransition(from, target, "missing_fields")
			s.logger.Info("transition blocked by missing fields",
				zap.String("lead_id", lead.ID),
				zap.String("from", string(from)),
				zap.String("to", string(target)),
				zap.Strings("missing", missing),
			)
			return nil, &domain.ErrMissingFields{From: from, To: target, MissingFields: missing}
		}
	}

	patch := map[string]any{}
	if forward {
		collected, err := collectInputs(inputs)
		if err != nil {
			s.metrics.IncrTransition(from, target, "invalid_input")
			return nil, err
		}
		patch = collected
	}
	patch["status"] = string(target)

	if err := s.leads.UpdateLead(ctx, lead.ID, patch); err != nil {
		s.metrics.IncrTransition(from, target, "store_error")
		s.logger.Error("transition update failed",
			zap.String("lead_id", lead.ID),
			zap.String("from", string(from)),
			zap.String("to", string(target)),
			zap.Error(err),
		)
		return nil, persistenceError("update lead "+lead.ID, err)
	}

	s.metrics.IncrTransition(from, target, "applied")
	s.logger.Info("lead transitioned",
		zap.String("lead_id", lead.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.Bool("forced", force),
		zap.Int("inputs", len(patch)-1),
	)

	updated, err := s.leads.GetLead(ctx, lead.ID)
	if err != nil {
		// The write went through; hand back the known state.
		s.logger.Warn("reload after transition failed", zap.String("lead_id", lead.ID), zap.Error(err))
		applied, mergeErr := lead.WithPatch(patch)
		if mergeErr != nil {
			return nil, &domain.ErrPersistence{Operation: "reload lead " + lead.ID, Err: err}
		}
		return &applied, nil
	}
	return updated, nil
}

// Advance moves the lead to its next stage.
func (s *TransitionService) Advance(ctx context.Context, lead *domain.Lead, req domain.AdvanceRequest) (*domain.Lead, error) {
	next, ok := lead.Status.Next()
	if !ok {
		return nil, &domain.ErrInvalidTransition{From: lead.Status, To: ""}
	}
	return s.Execute(ctx, lead, next, req.Inputs, req.Force)
}

// Regress moves the lead to its previous stage.
func (s *TransitionService) Regress(ctx context.Context, lead *domain.Lead) (*domain.Lead, error) {
	prev, ok := lead.Status.Prev()
	if !ok {
		return nil, &domain.ErrInvalidTransition{From: lead.Status, To: ""}
	}
	return s.Execute(ctx, lead, prev, nil, false)
}

// ============================================================
// Input coercion
// ============================================================

var (
	decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	prefixedRadix  = map[byte]int{'x': 16, 'X': 16, 'o': 8, 'O': 8, 'b': 2, 'B': 2}
)

// CoerceInput converts a collected value the way JavaScript's Number()
// does: surrounding whitespace is ignored, a blank value is 0, decimal and
// 0x/0o/0b literals become numbers. Values that do not convert to a finite
// number are kept as the raw string. ok is false for "", which is dropped.
func CoerceInput(raw string) (value any, ok bool) {
	if raw == "" {
		return nil, false
	}
	// JSON has no encoding for NaN or ±Inf, so those stay text.
	if n, isNum := jsNumber(raw); isNum && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return n, true
	}
	return raw, true
}

// collectInputs coerces the values collected on a forward move and checks
// them like any other lead update. Text and date columns keep the value
// exactly as typed; boolean columns accept "true" and "false".
func collectInputs(inputs map[string]string) (map[string]any, error) {
	raw := make(map[string]any, len(inputs))
	for field, in := range inputs {
		if field == "status" || !domain.IsLeadField(field) {
			return nil, &domain.ErrValidation{Field: field, Message: "not a collectable lead field"}
		}
		v, ok := CoerceInput(in)
		if !ok {
			continue
		}
		switch domain.LeadFieldKind(field) {
		case domain.FieldText, domain.FieldDate:
			v = in
		case domain.FieldBool:
			if b, err := strconv.ParseBool(strings.TrimSpace(in)); err == nil {
				v = b
			}
		}
		raw[field] = v
	}
	return sanitizePatch(raw)
}

func jsNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, true
	}
	if len(s) > 2 && s[0] == '0' {
		if base, ok := prefixedRadix[s[1]]; ok {
			return parseRadix(s[2:], base)
		}
	}
	if !decimalLiteral.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out of range: JavaScript yields ±Infinity, which the caller keeps as text.
		return math.Inf(1), true
	}
	return n, true
}

func parseRadix(digits string, base int) (float64, bool) {
	var n float64
	for _, r := range digits {
		d, err := strconv.ParseInt(string(r), base, 8)
		if err != nil {
			return 0, false
		}
		n = n*float64(base) + float64(d)
	}
	return n, true
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case []string:
		return strings.Join(t, ",")
	}
	return ""
}
