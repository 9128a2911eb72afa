package handler

import (
	"context"
	"net/http"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Session & Admin Handlers
// ============================================================

func meHandler(svc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Me(ProfileFromContext(r.Context())))
	}
}

func accessRequestHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/access-request")
		defer span.End()

		resp, err := svc.RequestAccess(ctx, ProfileFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, resp)
	}
}

func listProfilesHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/profiles")
		defer span.End()

		q := r.URL.Query()
		profiles, err := svc.ListProfiles(ctx, domain.ProfileFilter{
			Status: domain.ProfileStatus(q.Get("status")),
			Role:   domain.Role(q.Get("role")),
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Profile]{Data: profiles, Total: len(profiles)})
	}
}

// profileAction is one of the admin decisions on a target profile.
type profileAction func(ctx context.Context, actor *domain.Profile, id string) (*domain.Profile, error)

func profileActionHandler(name string, action profileAction, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/profiles/{profileId}/"+name)
		defer span.End()

		profile, err := action(ctx, ProfileFromContext(ctx), chi.URLParam(r, "profileId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func approveProfileHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return profileActionHandler("approve", svc.Approve, logger)
}

func rejectProfileHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return profileActionHandler("reject", svc.Reject, logger)
}

func suspendProfileHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return profileActionHandler("suspend", svc.Suspend, logger)
}

func changeRoleHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/profiles/{profileId}/role")
		defer span.End()

		var req domain.ChangeRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		profile, err := svc.ChangeRole(ctx, ProfileFromContext(ctx), chi.URLParam(r, "profileId"), req.Role)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}
