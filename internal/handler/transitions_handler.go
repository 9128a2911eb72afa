package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Pipeline & Transition Handlers
// ============================================================

func pipelineHandler(svc *service.TransitionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Pipeline())
	}
}

func prepareForwardHandler(leads *service.LeadService, svc *service.TransitionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/leads/{leadId}/transitions/forward")
		defer span.End()

		lead, err := leads.Get(ctx, ProfileFromContext(ctx), chi.URLParam(r, "leadId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, svc.PrepareForward(lead))
	}
}

func prepareBackwardHandler(leads *service.LeadService, svc *service.TransitionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/leads/{leadId}/transitions/backward")
		defer span.End()

		lead, err := leads.Get(ctx, ProfileFromContext(ctx), chi.URLParam(r, "leadId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, svc.PrepareBackward(lead))
	}
}

func executeTransitionHandler(leads *service.LeadService, svc *service.TransitionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/leads/{leadId}/transitions")
		defer span.End()

		var req domain.TransitionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Target == "" {
			writeError(w, http.StatusBadRequest, "target is required")
			return
		}
		span.SetAttributes(attribute.String("transition.target", string(req.Target)))

		lead, err := leads.Get(ctx, ProfileFromContext(ctx), chi.URLParam(r, "leadId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		updated, err := svc.Execute(ctx, lead, req.Target, req.Inputs, req.Force)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func advanceHandler(leads *service.LeadService, svc *service.TransitionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/leads/{leadId}/advance")
		defer span.End()

		var req domain.AdvanceRequest
		// An empty body advances without inputs.
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		lead, err := leads.Get(ctx, ProfileFromContext(ctx), chi.URLParam(r, "leadId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		updated, err := svc.Advance(ctx, lead, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func regressHandler(leads *service.LeadService, svc *service.TransitionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/leads/{leadId}/regress")
		defer span.End()

		lead, err := leads.Get(ctx, ProfileFromContext(ctx), chi.URLParam(r, "leadId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		updated, err := svc.Regress(ctx, lead)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}
