package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	cvemodels "cveregistry/internal/cveid/models"
	"cveregistry/internal/org/models"
	dErrors "cveregistry/pkg/domain-errors"
	"cveregistry/pkg/platform/httputil"
	"cveregistry/pkg/platform/middleware/admin"
	request "cveregistry/pkg/platform/middleware/request"
	"cveregistry/pkg/requestcontext"
)

// OrgService is the organization surface used by the handler.
type OrgService interface {
	FindByShortName(ctx context.Context, shortName string) (*models.Organization, error)
	SetQuota(ctx context.Context, shortName string, idQuota int) error
}

// QuotaReader computes quota snapshots from reserved identifiers.
type QuotaReader interface {
	Quota(ctx context.Context, shortName string) (cvemodels.QuotaSnapshot, error)
}

// Handler serves organization endpoints.
type Handler struct {
	orgs   OrgService
	quota  QuotaReader
	logger *slog.Logger
}

func New(orgs OrgService, quota QuotaReader, logger *slog.Logger) *Handler {
	return &Handler{orgs: orgs, quota: quota, logger: logger}
}

// Register mounts the routes. Callers must already be resolved by
// auth.RequireCaller.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/org/{shortname}", h.handleGetOrg)
	r.Get("/api/org/{shortname}/id_quota", h.handleGetQuota)
	r.With(admin.RequireRole(string(models.RoleSecretariat), h.logger)).
		Put("/api/org/{shortname}/id_quota", h.handleSetQuota)
}

type orgResponse struct {
	UUID      string   `json:"UUID"`
	ShortName string   `json:"short_name"`
	Name      string   `json:"name"`
	Roles     []string `json:"authority"`
	IDQuota   int      `json:"id_quota"`
}

func (h *Handler) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shortName := chi.URLParam(r, "shortname")
	if !h.authorize(ctx, shortName) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "not allowed to view this organization"))
		return
	}
	org, err := h.orgs.FindByShortName(ctx, shortName)
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "organization %s does not exist", shortName))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, orgResponse{
		UUID:      org.UUID.String(),
		ShortName: org.ShortName,
		Name:      org.Name,
		Roles:     org.RoleNames(),
		IDQuota:   org.IDQuota,
	})
}

func (h *Handler) handleGetQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shortName := chi.URLParam(r, "shortname")
	if !h.authorize(ctx, shortName) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "not allowed to view this organization's quota"))
		return
	}
	q, err := h.quota.Quota(ctx, shortName)
	if err != nil {
		h.logError(ctx, "failed to read quota", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) handleSetQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shortName := chi.URLParam(r, "shortname")
	quota, err := strconv.Atoi(r.URL.Query().Get("id_quota"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "id_quota must be an integer"))
		return
	}
	if err := h.orgs.SetQuota(ctx, shortName, quota); err != nil {
		h.logError(ctx, "failed to set quota", err)
		httputil.WriteError(w, err)
		return
	}
	q, err := h.quota.Quota(ctx, shortName)
	if err != nil {
		h.logError(ctx, "failed to read quota", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) authorize(ctx context.Context, shortName string) bool {
	caller := requestcontext.Principal(ctx)
	return models.MayActFor(caller.OrgShortName, caller.Roles, shortName)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", request.GetRequestID(ctx))
		return
	}
	h.logger.WarnContext(ctx, msg, "error", err, "request_id", request.GetRequestID(ctx))
}
