package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"cveregistry/internal/cveid/models"
	"cveregistry/internal/cveid/service"
	orgmodels "cveregistry/internal/org/models"
	dErrors "cveregistry/pkg/domain-errors"
	"cveregistry/pkg/platform/httputil"
	"cveregistry/pkg/platform/middleware/admin"
	request "cveregistry/pkg/platform/middleware/request"
	"cveregistry/pkg/requestcontext"
)

// HeaderRemainingQuota carries the owning org's quota left after a reservation.
const HeaderRemainingQuota = "CVE-API-REMAINING-QUOTA"

// Accepted batch_type values.
const (
	BatchNonsequential = "nonsequential"
	BatchNonSequential = "non-sequential"
	BatchSequential    = "sequential"
)

// Service is the identifier surface used by the handler.
type Service interface {
	Reserve(ctx context.Context, req service.ReserveRequest) (*models.Reservation, error)
	GetIdentifier(ctx context.Context, id string) (*models.Identifier, error)
	ProvisionYear(ctx context.Context, year int) (*models.YearRange, error)
	GetRange(ctx context.Context, year int) (*models.YearRange, error)
	MaxAmount() int
}

// Handler serves the identifier and range endpoints.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the routes. Callers must already be resolved by
// auth.RequireCaller.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/cve-id", h.handleReserve)
	r.Get("/api/cve-id/{id}", h.handleGetIdentifier)
	r.Get("/api/cve-id-range/{year}", h.handleGetRange)
	r.With(admin.RequireRole(string(orgmodels.RoleSecretariat), h.logger)).
		Post("/api/cve-id-range/{year}", h.handleProvisionRange)
}

type identifierResponse struct {
	ID          string             `json:"cve_id"`
	Year        string             `json:"cve_year"`
	State       string             `json:"state"`
	OwningOrg   string             `json:"owning_cna"`
	RequestedBy models.RequestedBy `json:"requested_by"`
	Reserved    string             `json:"reserved"`
}

type reservationResponse struct {
	Message string               `json:"message,omitempty"`
	CVEIDs  []identifierResponse `json:"cve_ids"`
}

type reservationFailure struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type rangeResponse struct {
	Year    int          `json:"cve_year"`
	Ranges  rangesObject `json:"ranges"`
	Message string       `json:"message,omitempty"`
}

type rangesObject struct {
	Priority models.Range `json:"priority"`
	General  models.Range `json:"general"`
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Principal(ctx)

	req, err := h.parseReserve(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := authorizeOwner(caller, req.OwningOrg); err != nil {
		h.logger.WarnContext(ctx, "reservation forbidden",
			"org", caller.OrgShortName,
			"owning_org", req.OwningOrg,
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	req.Requester = models.Requester{Org: caller.OrgUUID, User: caller.UserUUID}

	res, err := h.svc.Reserve(ctx, req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeOrgNotFound) {
			httputil.WriteJSON(w, http.StatusForbidden, reservationFailure{
				Error:   "ORG_DNE",
				Message: err.Error(),
			})
			return
		}
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "reservation failed", "error", err, "request_id", request.GetRequestID(ctx))
		}
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set(HeaderRemainingQuota, strconv.Itoa(res.RemainingQuota))
	ids := renderReserved(res.IDs, req.OwningOrg, caller)
	switch res.Status {
	case models.StatusSuccess:
		httputil.WriteJSON(w, http.StatusOK, reservationResponse{CVEIDs: ids})
	case models.StatusPartial:
		httputil.WriteJSON(w, http.StatusPartialContent, reservationResponse{
			Message: fmt.Sprintf("Only %d CVE IDs were reserved because there are not enough CVE IDs left in the non-sequential block.", res.ClaimedCount),
			CVEIDs:  ids,
		})
	default:
		httputil.WriteJSON(w, http.StatusForbidden, reservationFailure{
			Error:   string(res.Reason),
			Message: failureMessage(res),
		})
	}
}

func (h *Handler) parseReserve(r *http.Request) (service.ReserveRequest, error) {
	q := r.URL.Query()
	for _, name := range []string{"amount", "cve_year", "short_name"} {
		if q.Get(name) == "" {
			return service.ReserveRequest{}, dErrors.Newf(dErrors.CodeBadRequest, "%s is required", name)
		}
	}

	switch strings.ToLower(strings.TrimSpace(q.Get("batch_type"))) {
	case "", BatchNonsequential, BatchNonSequential:
	case BatchSequential:
		return service.ReserveRequest{}, dErrors.New(dErrors.CodeUnsupported, "sequential reservations are not supported")
	default:
		return service.ReserveRequest{}, dErrors.New(dErrors.CodeBadRequest, "batch_type must be 'nonsequential'")
	}

	amount, err := strconv.Atoi(q.Get("amount"))
	if err != nil || amount < 1 || amount > h.svc.MaxAmount() {
		return service.ReserveRequest{}, dErrors.Newf(dErrors.CodeBadRequest, "amount must be an integer between 1 and %d", h.svc.MaxAmount())
	}
	yearParam := q.Get("cve_year")
	year, err := strconv.Atoi(yearParam)
	if err != nil || len(yearParam) != 4 || !models.ValidYear(year) {
		return service.ReserveRequest{}, dErrors.New(dErrors.CodeBadRequest, "cve_year must be a four digit year")
	}
	return service.ReserveRequest{
		Year:      year,
		Amount:    amount,
		OwningOrg: strings.TrimSpace(q.Get("short_name")),
	}, nil
}

func (h *Handler) handleGetIdentifier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Principal(ctx)

	ident, err := h.svc.GetIdentifier(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !strings.EqualFold(ident.OwningOrg, caller.OrgShortName) && !caller.HasRole(string(orgmodels.RoleSecretariat)) {
		// do not reveal whether the identifier exists
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "%s does not exist", ident.ID))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, render(*ident))
}

func (h *Handler) handleGetRange(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(chi.URLParam(r, "year"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	yr, err := h.svc.GetRange(r.Context(), year)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rangeResponse{
		Year:   yr.Year,
		Ranges: rangesObject{Priority: yr.Priority, General: yr.General},
	})
}

func (h *Handler) handleProvisionRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, err := parseYear(chi.URLParam(r, "year"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	yr, err := h.svc.ProvisionYear(ctx, year)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRangeExists) {
			httputil.WriteJSON(w, http.StatusBadRequest, reservationFailure{
				Error:   "YEAR_RANGE_EXISTS",
				Message: err.Error(),
			})
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rangeResponse{
		Year:    yr.Year,
		Ranges:  rangesObject{Priority: yr.Priority, General: yr.General},
		Message: fmt.Sprintf("%d CVE ID range was successfully created.", yr.Year),
	})
}

// authorizeOwner lets a caller reserve for owningOrg when it is that org or
// the secretariat, and only if it holds the CNA or SECRETARIAT role.
func authorizeOwner(caller requestcontext.Caller, owningOrg string) error {
	if !caller.HasRole(string(orgmodels.RoleCNA)) && !caller.HasRole(string(orgmodels.RoleSecretariat)) {
		return dErrors.New(dErrors.CodeForbidden, "only CNAs and the Secretariat can reserve CVE IDs")
	}
	if !orgmodels.MayActFor(caller.OrgShortName, caller.Roles, owningOrg) {
		return dErrors.Newf(dErrors.CodeForbidden, "%s is not allowed to reserve CVE IDs for %s", caller.OrgShortName, owningOrg)
	}
	return nil
}

func parseYear(raw string) (int, error) {
	year, err := strconv.Atoi(raw)
	if err != nil || len(raw) != 4 || !models.ValidYear(year) {
		return 0, dErrors.New(dErrors.CodeBadRequest, "cve_year must be a four digit year")
	}
	return year, nil
}

func failureMessage(res *models.Reservation) string {
	switch res.Reason {
	case models.ReasonQuotaExceeded:
		return fmt.Sprintf("The amount of CVE IDs requested (%d) exceeds the remaining quota (%d).", res.Requested, res.RemainingQuota)
	case models.ReasonRangeNotProvisioned:
		return fmt.Sprintf("No CVE ID range has been provisioned for %d.", res.Year)
	default:
		return fmt.Sprintf("There are no CVE IDs left to reserve for %d.", res.Year)
	}
}

// renderReserved shows newly reserved identifiers with human-readable owners.
func renderReserved(ids []models.Identifier, owningOrg string, caller requestcontext.Caller) []identifierResponse {
	out := make([]identifierResponse, len(ids))
	for i, id := range ids {
		id.OwningOrg = owningOrg
		id.RequestedBy = models.RequestedBy{Org: caller.OrgShortName, User: caller.Username}
		out[i] = render(id)
	}
	return out
}

func render(id models.Identifier) identifierResponse {
	return identifierResponse{
		ID:          id.ID,
		Year:        strconv.Itoa(id.Year),
		State:       string(id.State),
		OwningOrg:   id.OwningOrg,
		RequestedBy: id.RequestedBy,
		Reserved:    id.ReservedAt.UTC().Format(time.RFC3339),
	}
}
