package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dispatch-cli/internal/config"
	"github.com/sells-group/dispatch-cli/internal/issues"
	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/monitoring"
	"github.com/sells-group/dispatch-cli/internal/parser"
	"github.com/sells-group/dispatch-cli/internal/pricing"
	"github.com/sells-group/dispatch-cli/internal/routes"
	"github.com/sells-group/dispatch-cli/internal/store"
	"github.com/sells-group/dispatch-cli/internal/validate"
	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

// estimateBatchWorkers bounds concurrent per-order estimations inside one
// batch. The geocode client applies its own in-flight limit on top.
const estimateBatchWorkers = 3

// Pipeline runs a source file end to end: parse, estimate distances, organize
// routes, price the invoice, flag issues, persist. Everything after the parse
// degrades instead of aborting; a row that cannot be priced still flows
// through with whatever data it has.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	client    geocode.Client
	distancer *routes.DistanceCalculator
}

// New creates a Pipeline. The store doubles as the durable geocode cache.
func New(cfg *config.Config, st store.Store, client geocode.Client) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		client:    client,
		distancer: routes.NewDistanceCalculator(client, st),
	}
}

// Result aggregates everything one ingest run produced.
type Result struct {
	Ingest  *model.IngestRun
	Orders  []model.DeliveryOrder
	Columns validate.ColumnSet
	Routes  []model.OrderRoute
	Issues  []model.Issue
	Invoice *model.Invoice
	Skipped int
	Invalid int
}

// Stats converts the result to the persisted ingest summary.
func (r *Result) Stats() *model.IngestStats {
	stats := &model.IngestStats{
		Orders:  len(r.Orders),
		Skipped: r.Skipped,
		Invalid: r.Invalid,
		Issues:  len(r.Issues),
		Routes:  len(r.Routes),
	}
	if r.Invoice != nil {
		stats.InvoiceTotal = r.Invoice.TotalCost
	}
	return stats
}

// Run ingests a single source file. A parse failure marks the ingest failed
// and returns the error; every later stage logs and degrades instead.
func (p *Pipeline) Run(ctx context.Context, path string) (r *Result, err error) {
	log := zap.L().With(zap.String("source", path))
	log.Info("pipeline: starting ingest")
	defer monitoring.Span("pipeline.run", zap.String("source", path))(&err)

	ingest, err := p.store.CreateIngest(ctx, path)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create ingest")
	}

	parsed, err := p.parse(ctx, path)
	if err != nil {
		p.complete(ctx, ingest.ID, model.IngestStatusFailed, nil, log)
		return nil, err
	}

	result := &Result{
		Ingest:  ingest,
		Orders:  parsed.Orders,
		Columns: parsed.Columns,
		Skipped: parsed.Skipped,
		Invalid: parsed.Invalid,
	}

	p.estimateDistances(ctx, result.Orders)

	result.Routes = routes.Organize(result.Orders)
	result.Invoice = pricing.GenerateInvoice(ctx, result.Routes, p.distancer, p.cfg.Pricing.Rates())
	result.Issues = issues.Detect(result.Orders, p.cfg.Issues)

	p.persist(ctx, result, log)

	log.Info("pipeline: ingest complete",
		zap.String("ingest", ingest.ID),
		zap.Int("orders", len(result.Orders)),
		zap.Int("skipped", result.Skipped),
		zap.Int("routes", len(result.Routes)),
		zap.Int("issues", len(result.Issues)),
		zap.Float64("invoice_total", result.Invoice.TotalCost),
	)
	return result, nil
}

func (p *Pipeline) parse(ctx context.Context, path string) (res *parser.Result, err error) {
	defer monitoring.Span("pipeline.parse")(&err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err = parser.ParseOrdersFile(path, parser.Options{})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: parse orders")
	}
	return res, nil
}

// estimateDistances fills in EstimatedDistance for orders that arrived without
// a source distance, working through the list in fixed-size batches so one
// slow batch does not starve cancellation checks. Failures leave the order
// without an estimate; the distance ladder downstream handles that.
func (p *Pipeline) estimateDistances(ctx context.Context, orders []model.DeliveryOrder) {
	defer monitoring.Span("pipeline.estimate")(new(error))

	batchSize := p.cfg.Batch.Size
	if batchSize <= 0 {
		batchSize = 10
	}

	for start := 0; start < len(orders); start += batchSize {
		if ctx.Err() != nil {
			return
		}
		end := start + batchSize
		if end > len(orders) {
			end = len(orders)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(estimateBatchWorkers)
		for i := start; i < end; i++ {
			o := &orders[i]
			if o.Distance != nil || o.IsNoise || o.Pickup == "" || o.Dropoff == "" {
				continue
			}
			g.Go(func() error {
				p.estimateOrder(gctx, o)
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (p *Pipeline) estimateOrder(ctx context.Context, o *model.DeliveryOrder) {
	pickup, err1 := p.client.Geocode(ctx, o.Pickup)
	dropoff, err2 := p.client.Geocode(ctx, o.Dropoff)
	if err1 != nil || err2 != nil || !pickup.Matched || !dropoff.Matched {
		zap.L().Debug("pipeline: could not geocode order", zap.String("order", o.ID))
		return
	}

	miles, err := p.client.RouteDistance(ctx, []geocode.Coordinates{pickup.Coordinates, dropoff.Coordinates})
	if err != nil || miles <= 0 {
		zap.L().Debug("pipeline: directions failed", zap.String("order", o.ID), zap.Error(err))
		return
	}
	o.EstimatedDistance = &miles
}

// persist writes orders and the invoice and closes out the ingest record.
// Storage failures are logged; the in-memory result is still returned to the
// caller so a broken database never loses a run's output.
func (p *Pipeline) persist(ctx context.Context, result *Result, log *zap.Logger) {
	defer monitoring.Span("pipeline.persist")(new(error))

	if err := p.store.SaveOrders(ctx, result.Ingest.ID, result.Orders); err != nil {
		log.Warn("pipeline: failed to save orders", zap.Error(err))
	}
	if err := p.store.SaveInvoice(ctx, result.Ingest.ID, result.Invoice); err != nil {
		log.Warn("pipeline: failed to save invoice", zap.Error(err))
	}
	p.complete(ctx, result.Ingest.ID, model.IngestStatusComplete, result.Stats(), log)
}

func (p *Pipeline) complete(ctx context.Context, id string, status model.IngestStatus, stats *model.IngestStats, log *zap.Logger) {
	if err := p.store.CompleteIngest(ctx, id, status, stats); err != nil {
		log.Warn("pipeline: failed to close ingest", zap.String("status", string(status)), zap.Error(err))
	}
}
