package verify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/verity-catalog/verity-catalog/internal/catalog"
)

const (
	defaultPageSize          = 200
	defaultVisionConcurrency = 4
	defaultResultsPerPage    = 50
)

// CatalogStore is the slice of the catalog repository the service uses.
type CatalogStore interface {
	ListProducts(ctx context.Context, filters catalog.ListFilters) ([]catalog.ProductRecord, int, error)
	GetProduct(ctx context.Context, id int64) (catalog.ProductRecord, error)
	BrandsByName(ctx context.Context, names []string) (map[string]catalog.BrandRef, error)
	UnitsByCode(ctx context.Context, codes []string) (map[string]catalog.UnitRef, error)
	ClassificationsByCode(ctx context.Context, codes []string) (map[string]catalog.ClassificationRef, error)
}

// RunStore persists batch runs and their per-product results.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status RunStatus, errMsg string) error
	AddRunCounters(ctx context.Context, id uuid.UUID, total, verified, unverified int) error
	SaveResults(ctx context.Context, items []StoredResult) error
	ResultsForRun(ctx context.Context, runID uuid.UUID, limit, offset int) ([]StoredResult, int, error)
	LatestResults(ctx context.Context, productIDs []int64) (map[int64]StoredResult, error)
}

// ConceptDetector recognizes what a product photo shows. Implementations
// may return no concepts at all when recognition is not configured.
type ConceptDetector interface {
	Detect(ctx context.Context, imageRef string) ([]DetectedConcept, error)
}

// MetricsRecorder feeds verification outcomes into counters.
type MetricsRecorder interface {
	RecordVerification(status string)
	RecordIssue(rule, severity string)
	RecordVisionFailure()
}

// ServiceConfig tunes paging and concurrency.
type ServiceConfig struct {
	PageSize          int
	BatchConcurrency  int
	VisionConcurrency int
}

// Service coordinates catalog loading, concept detection and the rules
// engine for single and batch verification.
type Service struct {
	catalog  CatalogStore
	runs     RunStore
	detector ConceptDetector
	engine   *Engine
	metrics  MetricsRecorder
	logger   *slog.Logger
	now      func() time.Time

	pageSize    int
	batchLimit  int
	visionLimit int
}

// NewService builds the service. A nil detector disables image
// recognition and a nil metrics recorder disables counters.
func NewService(catalogStore CatalogStore, runStore RunStore, detector ConceptDetector, metrics MetricsRecorder, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	batchLimit := cfg.BatchConcurrency
	if batchLimit <= 0 {
		batchLimit = DefaultBatchConcurrency
	}
	visionLimit := cfg.VisionConcurrency
	if visionLimit <= 0 {
		visionLimit = defaultVisionConcurrency
	}
	return &Service{
		catalog:     catalogStore,
		runs:        runStore,
		detector:    detector,
		engine:      NewEngine(logger),
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
		pageSize:    pageSize,
		batchLimit:  batchLimit,
		visionLimit: visionLimit,
	}
}

// VerifyProduct verifies one stored product.
func (s *Service) VerifyProduct(ctx context.Context, id int64) (Result, error) {
	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return Result{}, err
	}
	inputs := s.buildInputs(ctx, []catalog.ProductRecord{product})
	res := s.engine.Verify(inputs[0])
	s.record(res)
	return res, nil
}

// VerifyAdhoc verifies a payload that is not stored in the catalog.
// Reference entities are still resolved so brand categories and unit
// names line up with stored products.
func (s *Service) VerifyAdhoc(ctx context.Context, product catalog.ProductRecord) Result {
	inputs := s.buildInputs(ctx, []catalog.ProductRecord{product})
	res := s.engine.Verify(inputs[0])
	s.record(res)
	return res
}

// StartRun registers a pending batch run covering the filtered slice of
// the catalog. Processing happens asynchronously.
func (s *Service) StartRun(ctx context.Context, filters RunFilters) (Run, error) {
	nowTS := s.now().UTC()
	run := Run{
		ID:        uuid.New(),
		Filters:   filters,
		Status:    RunPending,
		CreatedAt: nowTS,
		UpdatedAt: nowTS,
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ProcessRun walks the catalog page by page and persists one stored
// result per product. A run that already completed is left untouched so
// queue redeliveries stay harmless.
func (s *Service) ProcessRun(ctx context.Context, runID uuid.UUID) error {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status == RunCompleted {
		return nil
	}
	if err := s.runs.UpdateRunStatus(ctx, run.ID, RunRunning, ""); err != nil {
		return err
	}

	page := 1
	for {
		products, _, err := s.catalog.ListProducts(ctx, catalog.ListFilters{
			Search:  run.Filters.Search,
			Brand:   run.Filters.Brand,
			Page:    page,
			Limit:   s.pageSize,
			SortBy:  "id",
			SortDir: "asc",
		})
		if err != nil {
			return s.failRun(ctx, run.ID, err)
		}
		if len(products) == 0 {
			break
		}

		inputs := s.buildInputs(ctx, products)
		results, err := s.engine.VerifyBatch(ctx, inputs, s.batchLimit)
		if err != nil {
			return s.failRun(ctx, run.ID, err)
		}

		stored := make([]StoredResult, 0, len(results))
		verified := 0
		for i, res := range results {
			if res.Status == StatusVerified {
				verified++
			}
			s.record(res)
			stored = append(stored, StoredResult{
				RunID:       run.ID,
				ProductID:   products[i].ID,
				ProductName: products[i].Name,
				Status:      res.Status,
				Result:      res,
			})
		}
		if err := s.runs.SaveResults(ctx, stored); err != nil {
			return s.failRun(ctx, run.ID, err)
		}
		if err := s.runs.AddRunCounters(ctx, run.ID, len(results), verified, len(results)-verified); err != nil {
			return s.failRun(ctx, run.ID, err)
		}

		if len(products) < s.pageSize {
			break
		}
		page++
	}

	return s.runs.UpdateRunStatus(ctx, run.ID, RunCompleted, "")
}

// GetRun returns run metadata by id.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	return s.runs.GetRun(ctx, id)
}

// ListRuns fetches the most recent runs.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.runs.ListRuns(ctx, limit)
}

// RunResults pages through stored verdicts for one run.
func (s *Service) RunResults(ctx context.Context, runID uuid.UUID, page, limit int) ([]StoredResult, int, error) {
	if _, err := s.runs.GetRun(ctx, runID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = defaultResultsPerPage
	}
	if page < 1 {
		page = 1
	}
	return s.runs.ResultsForRun(ctx, runID, limit, (page-1)*limit)
}

// ProductOverview pairs a catalog row with its most recent verdict.
type ProductOverview struct {
	Product       catalog.ProductRecord `json:"product"`
	LastStatus    Status                `json:"last_status,omitempty"`
	LastCheckedAt *time.Time            `json:"last_checked_at,omitempty"`
}

// ListProducts returns a catalog page annotated with the latest stored
// verification status per product. Products never verified carry no
// status at all.
func (s *Service) ListProducts(ctx context.Context, filters catalog.ListFilters) ([]ProductOverview, int, error) {
	products, total, err := s.catalog.ListProducts(ctx, filters)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	latest, err := s.runs.LatestResults(ctx, ids)
	if err != nil {
		s.logger.Warn("load latest results", slog.Any("error", err))
		latest = nil
	}
	overviews := make([]ProductOverview, 0, len(products))
	for _, p := range products {
		overview := ProductOverview{Product: p}
		if res, ok := latest[p.ID]; ok {
			overview.LastStatus = res.Status
			checked := res.Result.CheckedAt
			overview.LastCheckedAt = &checked
		}
		overviews = append(overviews, overview)
	}
	return overviews, total, nil
}

// buildInputs resolves reference entities once per batch and fans out
// concept detection bounded by the vision concurrency limit. Failures on
// either side degrade the affected input rather than abort the batch.
func (s *Service) buildInputs(ctx context.Context, products []catalog.ProductRecord) []Input {
	brands, units, classes := s.resolveRefs(ctx, products)

	inputs := make([]Input, len(products))
	for i, p := range products {
		in := Input{Product: p}
		if b, ok := brands[strings.TrimSpace(p.BrandName)]; ok {
			in.Brand = &b
		}
		if u, ok := units[strings.ToUpper(strings.TrimSpace(p.UnitCode))]; ok {
			in.Unit = &u
		}
		if c, ok := classes[ParseClassification(p.Classification).Code]; ok {
			in.Classification = &c
		}
		inputs[i] = in
	}

	s.detectConcepts(ctx, inputs)
	return inputs
}

func (s *Service) resolveRefs(ctx context.Context, products []catalog.ProductRecord) (map[string]catalog.BrandRef, map[string]catalog.UnitRef, map[string]catalog.ClassificationRef) {
	var names, unitCodes, classCodes []string
	seenName := map[string]bool{}
	seenUnit := map[string]bool{}
	seenClass := map[string]bool{}
	for _, p := range products {
		if name := strings.TrimSpace(p.BrandName); name != "" && !seenName[name] {
			seenName[name] = true
			names = append(names, name)
		}
		if code := strings.ToUpper(strings.TrimSpace(p.UnitCode)); code != "" && !seenUnit[code] {
			seenUnit[code] = true
			unitCodes = append(unitCodes, code)
		}
		if code := ParseClassification(p.Classification).Code; code != "" && !seenClass[code] {
			seenClass[code] = true
			classCodes = append(classCodes, code)
		}
	}

	brands, err := s.catalog.BrandsByName(ctx, names)
	if err != nil {
		s.logger.Warn("resolve brands", slog.Any("error", err))
		brands = nil
	}
	units, err := s.catalog.UnitsByCode(ctx, unitCodes)
	if err != nil {
		s.logger.Warn("resolve units", slog.Any("error", err))
		units = nil
	}
	classes, err := s.catalog.ClassificationsByCode(ctx, classCodes)
	if err != nil {
		s.logger.Warn("resolve classifications", slog.Any("error", err))
		classes = nil
	}
	return brands, units, classes
}

func (s *Service) detectConcepts(ctx context.Context, inputs []Input) {
	if s.detector == nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.visionLimit)
	for i := range inputs {
		if inputs[i].Product.ImageRef == "" {
			continue
		}
		i := i // per-iteration copy; required under go 1.21 loop semantics
		g.Go(func() error {
			concepts, err := s.detector.Detect(gctx, inputs[i].Product.ImageRef)
			if err != nil {
				inputs[i].RecognitionFailed = true
				s.recordVisionFailure()
				s.logger.Warn("concept detection",
					slog.String("image", inputs[i].Product.ImageRef),
					slog.Any("error", err))
				return nil
			}
			inputs[i].Concepts = concepts
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) failRun(ctx context.Context, id uuid.UUID, cause error) error {
	if err := s.runs.UpdateRunStatus(ctx, id, RunFailed, cause.Error()); err != nil {
		s.logger.Error("mark run failed",
			slog.String("run_id", id.String()),
			slog.Any("error", err))
	}
	return cause
}

func (s *Service) record(res Result) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordVerification(string(res.Status))
	for _, issue := range res.Issues {
		s.metrics.RecordIssue(issue.Rule, string(issue.Severity))
	}
}

func (s *Service) recordVisionFailure() {
	if s.metrics != nil {
		s.metrics.RecordVisionFailure()
	}
}
