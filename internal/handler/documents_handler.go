package handler

import (
	"net/http"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Documents Handlers
// ============================================================

func listDocumentsHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/leads/{leadId}/documents")
		defer span.End()

		docs, err := svc.List(ctx, ProfileFromContext(ctx), chi.URLParam(r, "leadId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.DocumentView]{Data: docs, Total: len(docs)})
	}
}

func uploadDocumentHandler(svc *service.DocumentService, maxBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/leads/{leadId}/documents")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form or file too large")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		req := domain.UploadDocumentRequest{
			LeadID:      chi.URLParam(r, "leadId"),
			Type:        domain.DocumentType(r.FormValue("type")),
			Name:        r.FormValue("name"),
			ExpiryDate:  r.FormValue("expiry_date"),
			FileName:    header.Filename,
			ContentType: contentType,
			Size:        header.Size,
		}

		doc, err := svc.Upload(ctx, ProfileFromContext(ctx), req, file)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
	}
}

func deleteDocumentHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/documents/{docId}")
		defer span.End()

		docID := chi.URLParam(r, "docId")
		if err := svc.Delete(ctx, ProfileFromContext(ctx), docID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "document deleted", ID: docID})
	}
}

func expiringDocumentsHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/documents/expiring")
		defer span.End()

		summary, err := svc.ExpirySummary(ctx, ProfileFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}
