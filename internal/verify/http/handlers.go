package verifyhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/verity-catalog/verity-catalog/internal/catalog"
	"github.com/verity-catalog/verity-catalog/internal/platform/httpx"
	"github.com/verity-catalog/verity-catalog/internal/shared"
	"github.com/verity-catalog/verity-catalog/internal/verify"
	"github.com/verity-catalog/verity-catalog/jobs"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	defaultRunLimit = 50

	// Batch runs are expensive; they get a far stricter rate budget
	// than the global request limit.
	runsPerMinute = 10
)

// VerificationService defines the business contract used by the handler.
type VerificationService interface {
	VerifyProduct(ctx context.Context, id int64) (verify.Result, error)
	VerifyAdhoc(ctx context.Context, product catalog.ProductRecord) verify.Result
	StartRun(ctx context.Context, filters verify.RunFilters) (verify.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (verify.Run, error)
	ListRuns(ctx context.Context, limit int) ([]verify.Run, error)
	RunResults(ctx context.Context, runID uuid.UUID, page, limit int) ([]verify.StoredResult, int, error)
	ListProducts(ctx context.Context, filters catalog.ListFilters) ([]verify.ProductOverview, int, error)
}

// Handler serves the verification JSON API.
type Handler struct {
	logger    *slog.Logger
	service   VerificationService
	validator *validator.Validate
	jobs      *jobs.Client
}

// NewHandler constructs the verification HTTP handler.
func NewHandler(logger *slog.Logger, service VerificationService, jobsClient *jobs.Client) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		jobs:      jobsClient,
	}
}

// MountRoutes registers verification routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/verify", h.verifyAdhoc)
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/{id}/verify", h.verifyProduct)
	})
	r.Route("/runs", func(r chi.Router) {
		r.With(httprate.Limit(runsPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
			Post("/", h.createRun)
		r.Get("/", h.listRuns)
		r.Get("/{id}", h.showRun)
		r.Get("/{id}/results", h.runResults)
	})
}

type checkRequest struct {
	Name           string `json:"name" validate:"required,min=2"`
	LocalName      string `json:"local_name"`
	Description    string `json:"description"`
	Barcode        string `json:"barcode"`
	BrandName      string `json:"brand_name"`
	UnitCode       string `json:"unit_code"`
	Classification string `json:"classification"`
	ImageRef       string `json:"image_ref"`
}

type runRequest struct {
	Search string `json:"search"`
	Brand  string `json:"brand"`
}

type productListResponse struct {
	Products   []verify.ProductOverview `json:"products"`
	Pagination shared.Pagination        `json:"pagination"`
}

type runListResponse struct {
	Runs []verify.Run `json:"runs"`
}

type runResultsResponse struct {
	Results    []verify.StoredResult `json:"results"`
	Pagination shared.Pagination     `json:"pagination"`
}

func (h *Handler) verifyAdhoc(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, validationFields(err))
		return
	}

	result := h.service.VerifyAdhoc(r.Context(), catalog.ProductRecord{
		Name:           strings.TrimSpace(req.Name),
		LocalName:      strings.TrimSpace(req.LocalName),
		Description:    strings.TrimSpace(req.Description),
		Barcode:        strings.TrimSpace(req.Barcode),
		BrandName:      strings.TrimSpace(req.BrandName),
		UnitCode:       strings.TrimSpace(req.UnitCode),
		Classification: strings.TrimSpace(req.Classification),
		ImageRef:       strings.TrimSpace(req.ImageRef),
	})
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) verifyProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Product ID", "product id must be a positive integer")
		return
	}
	result, err := h.service.VerifyProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.serverError(w, "verify product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := parsePaging(r)
	if err != nil {
		h.pagingError(w, err)
		return
	}
	filters := catalog.ListFilters{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Brand:  strings.TrimSpace(r.URL.Query().Get("brand")),
		Page:   page,
		Limit:  pageSize,
	}
	products, total, err := h.service.ListProducts(r.Context(), filters)
	if err != nil {
		h.serverError(w, "list products", err)
		return
	}
	if products == nil {
		products = []verify.ProductOverview{}
	}
	httpx.JSON(w, http.StatusOK, productListResponse{
		Products:   products,
		Pagination: shared.NewPagination(page, pageSize, total),
	})
}

func (h *Handler) createRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
			return
		}
	}
	run, err := h.service.StartRun(r.Context(), verify.RunFilters{
		Search: strings.TrimSpace(req.Search),
		Brand:  strings.TrimSpace(req.Brand),
	})
	if err != nil {
		h.serverError(w, "start verification run", err)
		return
	}
	if h.jobs != nil {
		if _, err := h.jobs.EnqueueVerificationRun(r.Context(), run.ID); err != nil && h.logger != nil {
			h.logger.Warn("enqueue verification run", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusAccepted, run)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			h.pagingError(w, validationError{field: "limit"})
			return
		}
		limit = parsed
	}
	runs, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		h.serverError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []verify.Run{}
	}
	httpx.JSON(w, http.StatusOK, runListResponse{Runs: runs})
}

func (h *Handler) showRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Run ID", "run id must be a UUID")
		return
	}
	run, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, verify.ErrRunNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.serverError(w, "load run", err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) runResults(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Run ID", "run id must be a UUID")
		return
	}
	page, pageSize, err := parsePaging(r)
	if err != nil {
		h.pagingError(w, err)
		return
	}
	results, total, err := h.service.RunResults(r.Context(), id, page, pageSize)
	if err != nil {
		if errors.Is(err, verify.ErrRunNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.serverError(w, "load run results", err)
		return
	}
	if results == nil {
		results = []verify.StoredResult{}
	}
	httpx.JSON(w, http.StatusOK, runResultsResponse{
		Results:    results,
		Pagination: shared.NewPagination(page, pageSize, total),
	})
}

func (h *Handler) pagingError(w http.ResponseWriter, err error) {
	var v validationError
	if errors.As(err, &v) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", v.Error())
		return
	}
	h.serverError(w, "parse paging", err)
}

func (h *Handler) serverError(w http.ResponseWriter, message string, err error) {
	if h.logger != nil {
		h.logger.Error(message, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parsePaging(r *http.Request) (int, int, error) {
	page := 1
	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return 0, 0, validationError{field: "page"}
		}
		page = parsed
	}
	pageSize := defaultPageSize
	if v := strings.TrimSpace(r.URL.Query().Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return 0, 0, validationError{field: "page_size"}
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		pageSize = parsed
	}
	return page, pageSize, nil
}

func validationFields(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			fields[fieldErr.Field()] = fieldErr.Error()
		}
	}
	if len(fields) == 0 {
		fields["payload"] = err.Error()
	}
	return fields
}

type validationError struct {
	field string
}

func (v validationError) Error() string {
	return fmt.Sprintf("invalid %s", v.field)
}
