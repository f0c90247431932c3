// Package runfacade assembles one workflow run: it resolves provider
// clients from configuration, constructs the event bus and its
// subscribers (oversight tracker, cost tracker, renderer), wires budget
// cancellation, drives the workflow engine, and persists the result.
//
// Grounded on the teacher's internal/agent/app/coordinator/coordinator.go
// constructor (dependency assembly, a cost-tracking decorator wired ahead
// of the run, optional preload), generalized from a long-lived session
// coordinator to a one-shot run facade.
package runfacade

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"babylon/internal/config"
	"babylon/internal/costtracker"
	"babylon/internal/events"
	"babylon/internal/llmclient"
	"babylon/internal/logging"
	"babylon/internal/metrics"
	"babylon/internal/orgchart"
	"babylon/internal/oversight"
	"babylon/internal/persistence"
	"babylon/internal/prompts"
	"babylon/internal/renderer"
	"babylon/internal/tools"
	"babylon/internal/workflow"
)

// Facade owns every per-run collaborator and is discarded after Run
// returns; construct a fresh one per invocation.
type Facade struct {
	cfg    *config.Config
	logger logging.Logger

	bus       *events.Bus
	orgChart  *orgchart.Chart
	oversee   *oversight.Tracker
	costs     *costtracker.Tracker
	store     *persistence.Store
	render    renderer.Renderer
	cancelRun context.CancelFunc

	metrics        *metrics.Registry
	tracerProvider *sdktrace.TracerProvider
	metricsServer  *http.Server
}

// New resolves every collaborator a run needs from cfg. The caller must
// call Close when done (Run does not close the renderer or store itself,
// since a caller may want to inspect them after Run returns).
func New(cfg *config.Config, logger logging.Logger) (*Facade, error) {
	logger = logging.OrNop(logger)

	store, err := persistence.New(cfg.PersistencePath)
	if err != nil {
		return nil, fmt.Errorf("runfacade: open persistence store: %w", err)
	}

	rend, err := newRenderer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("runfacade: construct renderer: %w", err)
	}

	reg := metrics.New()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	f := &Facade{
		cfg:      cfg,
		logger:   logger,
		bus:      events.NewBus(logger),
		orgChart: orgchart.New(),
		oversee: oversight.New(
			oversight.WithRepeatWindow(cfg.OversightThresholds.RepeatedToolCount),
			oversight.WithLongStepThreshold(time.Duration(cfg.OversightThresholds.LongStepSeconds)*time.Second),
		),
		store:          store,
		render:         rend,
		metrics:        reg,
		tracerProvider: tp,
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		f.metricsServer = srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("runfacade: metrics server stopped: %v", err)
			}
		}()
	}

	return f, nil
}

func newRenderer(cfg *config.Config, logger logging.Logger) (renderer.Renderer, error) {
	switch cfg.Renderer {
	case "log":
		var logPath = cfg.RunLogPath
		if logPath == "" {
			logPath = cfg.PersistencePath + "/run.txt"
		}
		f, err := openAppend(logPath)
		if err != nil {
			return nil, err
		}
		return renderer.New(renderer.Options{Kind: renderer.KindLog, LogWriter: f, Logger: logger})
	case "none":
		return renderer.New(renderer.Options{Kind: renderer.KindNone})
	default:
		return renderer.New(renderer.Options{Kind: renderer.KindTerminal})
	}
}

// Run executes one workflow run to completion: wires the bus subscribers,
// enforces the configured budget via context cancellation, runs the
// engine, persists the result under the task's id, and returns it.
func (f *Facade) Run(ctx context.Context, description string) (workflow.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	f.cancelRun = cancel
	defer cancel()

	var budget *float64
	if f.cfg.BudgetDollars > 0 {
		b := f.cfg.BudgetDollars
		budget = &b
	}
	f.costs = costtracker.New(f.bus, cancel, budget, f.metrics)
	detachCosts := f.costs.Attach()
	defer detachCosts()

	detachOversight := f.oversee.Attach(f.bus)
	defer detachOversight()
	detachRenderer := f.bus.Subscribe(f.render)
	defer detachRenderer()

	clients, err := resolveClients(f.cfg)
	if err != nil {
		return workflow.Result{}, err
	}

	toolRegistry := tools.NewRegistry(tools.Options{
		CursorCLIEnabled: f.cfg.UseCLI,
		Logger:           f.logger,
	})

	promptLoader, err := prompts.New()
	if err != nil {
		return workflow.Result{}, fmt.Errorf("runfacade: load prompts: %w", err)
	}

	engine := workflow.New(workflow.Config{
		Bus:             f.bus,
		Logger:          f.logger,
		Tools:           toolRegistry,
		WorkingDir:      f.cfg.WorkingDirectory,
		OrgChart:        f.orgChart,
		Oversight:       f.oversee,
		Prompts:         promptLoader,
		Store:           f.store,
		Clients:         clients,
		Metrics:         f.metrics,
		MaxContextTurns: f.cfg.MaxContextTurns,
		DirectThreshold: f.cfg.ComplexityDirectThreshold,
		MaxDepth:        f.cfg.MaxDepth,
		MaxCompositeCycles: f.cfg.MaxCompositeCycles,
		MaxRetries:      f.cfg.MaxRetries,
	})

	rootTaskID := uuid.NewString()
	result := engine.Run(ctx, description, rootTaskID)

	if err := f.store.Put(rootTaskID, result); err != nil {
		f.logger.Error("runfacade: failed to persist result for %s: %v", rootTaskID, err)
	}

	return result, nil
}

// Close releases the renderer's resources (flushing its writer, closing
// any tail-follow listener), shuts down the metrics server (if one was
// started), and flushes the tracer provider. Call it once after Run
// returns.
func (f *Facade) Close() error {
	if f.metricsServer != nil {
		_ = f.metricsServer.Close()
	}
	if f.tracerProvider != nil {
		_ = f.tracerProvider.Shutdown(context.Background())
	}
	if f.render != nil {
		return f.render.Close()
	}
	return nil
}

// CostBreakdown returns the cumulative spend by role and by model for the
// run just completed.
func (f *Facade) CostBreakdown() (byRole, byModel map[string]float64) {
	if f.costs == nil {
		return nil, nil
	}
	return f.costs.Breakdown()
}

// TotalCost returns the cumulative dollar spend for the run just completed.
func (f *Facade) TotalCost() float64 {
	if f.costs == nil {
		return 0
	}
	return f.costs.TotalCost()
}

// resolveClients builds one provider client shared by every role, plus an
// optional "reviewer_economy" override when a cheaper reviewer model is
// configured.
func resolveClients(cfg *config.Config) (map[string]llmclient.Client, error) {
	client, err := newClient(cfg, cfg.DefaultProvider, cfg.DefaultModel)
	if err != nil {
		return nil, err
	}

	clients := map[string]llmclient.Client{
		tools.RoleAnalyzer:    client,
		tools.RolePlanner:     client,
		tools.RoleExecutor:    client,
		tools.RoleReviewer:    client,
		tools.RoleCoordinator: client,
		tools.RoleSteward:     client,
		tools.RoleOracle:      client,
	}

	if cfg.ReviewerModel != "" {
		economyClient, err := newClient(cfg, cfg.DefaultProvider, cfg.ReviewerModel)
		if err != nil {
			return nil, err
		}
		clients["reviewer_economy"] = economyClient
	}
	return clients, nil
}

func newClient(cfg *config.Config, provider, model string) (llmclient.Client, error) {
	switch provider {
	case "openai":
		return llmclient.NewOpenAIClient(llmclient.Config{APIKey: cfg.OpenAIAPIKey, Model: model}), nil
	case "anthropic", "":
		return llmclient.NewAnthropicClient(llmclient.Config{APIKey: cfg.AnthropicAPIKey, Model: model}), nil
	default:
		return nil, fmt.Errorf("runfacade: unknown provider %q", provider)
	}
}
