// Package rebuild orchestrates the full, atomic recomputation of
// positions from their source executions: fetch, pre-validate, scan,
// post-validate, then swap the stored set in one step.
package rebuild

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/flow"
	"main/internal/intake"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/store"
	"main/internal/validate"
)

const defaultWorkers = 4

// Config wires the coordinator's collaborators.
type Config struct {
	Source    store.ExecutionSource
	Positions store.PositionStore
	// Sink receives executions queued between rebuilds. Optional;
	// without it Ingest is rejected.
	Sink          store.ExecutionSink
	Registry      *schema.InstrumentRegistry
	Metrics       *obs.Metrics
	Workers       int
	QueueCapacity int
}

// Coordinator runs rebuilds and validations over a scope. All work
// happens on an isolated staging set; stored positions only change in
// the final atomic swap.
type Coordinator struct {
	cfg   Config
	locks scopeLocks
	queue *intake.Queue
}

// New validates the wiring and creates a coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Source == nil {
		return nil, errors.New("execution source is nil")
	}
	if cfg.Positions == nil {
		return nil, errors.New("position store is nil")
	}
	if cfg.Registry == nil {
		cfg.Registry = schema.NewInstrumentRegistry()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Coordinator{
		cfg:   cfg,
		queue: intake.NewQueue(cfg.QueueCapacity),
	}, nil
}

// Ingest queues an execution that arrived between or during rebuilds.
// Queued executions are never merged into an in-flight computation;
// the next rebuild flushes them into the sink and picks them up.
func (c *Coordinator) Ingest(e schema.Execution) error {
	if c.cfg.Sink == nil {
		return errors.New("no execution sink configured")
	}
	if err := c.queue.TryPublish(e); err != nil {
		c.cfg.Metrics.IncIntakeDrop()
		return err
	}
	return nil
}

// Rebuild recomputes the scoped position set from scratch and swaps it
// atomically. Overlapping concurrent rebuilds are rejected with
// ErrRebuildInFlight. Cancelling before the swap leaves the stored set
// untouched.
func (c *Coordinator) Rebuild(ctx context.Context, scope store.Scope) (Result, error) {
	if err := c.locks.acquire(scope); err != nil {
		return Result{}, err
	}
	defer c.locks.release(scope)

	c.cfg.Metrics.IncRebuild()
	result, err := c.rebuild(ctx, scope)
	if err != nil {
		c.cfg.Metrics.IncRebuildFailure()
	}
	return result, err
}

func (c *Coordinator) rebuild(ctx context.Context, scope store.Scope) (Result, error) {
	result := Result{Scope: scope}

	if err := c.flushIntake(ctx); err != nil {
		return result, err
	}

	fetchStart := time.Now()
	execs, err := c.cfg.Source.Executions(ctx, scope)
	if err != nil {
		return result, errors.Wrapf(err, "fetch executions for scope %s", scope)
	}
	result.FetchDuration = time.Since(fetchStart)
	c.cfg.Metrics.ObserveFetch(result.FetchDuration)

	preStart := time.Now()
	pre := validate.PreValidate(execs)
	preDuration := time.Since(preStart)
	result.Warnings = pre.Warnings
	result.ExecutionsRejected = len(pre.Rejected)

	scanStart := time.Now()
	positions, violations, err := c.scanGroups(ctx, flow.Group(pre.Valid))
	if err != nil {
		return result, err
	}
	result.ScanDuration = time.Since(scanStart)
	c.cfg.Metrics.ObserveScan(result.ScanDuration)

	postStart := time.Now()
	findings := make([]validate.Finding, 0, len(violations))
	for _, v := range violations {
		findings = append(findings, validate.BoundaryFinding(v))
	}
	findings = append(findings, validate.PostValidate(positions, time.Now().UTC())...)
	result.ValidateDuration = preDuration + time.Since(postStart)
	c.cfg.Metrics.ObserveValidate(result.ValidateDuration)

	schema.SortPositions(positions)

	// cancellation before the swap has no observable effect on the store
	if err := ctx.Err(); err != nil {
		return result, err
	}

	swapStart := time.Now()
	if err := c.cfg.Positions.ReplacePositions(ctx, scope, positions); err != nil {
		c.cfg.Metrics.IncSwapFailure()
		return result, errors.Wrapf(err, "atomic position swap for scope %s", scope)
	}
	result.SwapDuration = time.Since(swapStart)
	c.cfg.Metrics.ObserveSwap(result.SwapDuration)

	result.PositionsCreated = len(positions)
	result.ExecutionsProcessed = len(pre.Valid)
	result.Findings = findings
	for _, p := range positions {
		if p.Open() {
			result.OpenPositionsRemaining++
		}
	}

	c.cfg.Metrics.AddProcessed(result.ExecutionsProcessed, result.ExecutionsRejected, result.PositionsCreated)
	c.cfg.Metrics.ObserveFindings(findings)

	logs.Infof("rebuild %s: positions=%d processed=%d rejected=%d open=%d findings=%d warnings=%d",
		scope, result.PositionsCreated, result.ExecutionsProcessed, result.ExecutionsRejected,
		result.OpenPositionsRemaining, len(result.Findings), len(result.Warnings))
	return result, nil
}

// Validate runs the pre-validator on raw executions, dry-runs the flow
// engine on the staging result, and post-validates the currently
// stored positions. Nothing is written.
func (c *Coordinator) Validate(ctx context.Context, scope store.Scope) (Report, error) {
	report := Report{Scope: scope}

	execs, err := c.cfg.Source.Executions(ctx, scope)
	if err != nil {
		return report, errors.Wrapf(err, "fetch executions for scope %s", scope)
	}
	pre := validate.PreValidate(execs)
	report.Warnings = pre.Warnings
	report.ExecutionsRejected = len(pre.Rejected)

	_, violations, err := c.scanGroups(ctx, flow.Group(pre.Valid))
	if err != nil {
		return report, err
	}

	stored, err := c.cfg.Positions.Positions(ctx, store.Query{Account: scope.Account, Symbol: scope.Symbol})
	if err != nil {
		return report, errors.Wrapf(err, "fetch stored positions for scope %s", scope)
	}
	report.StoredPositions = len(stored)

	findings := make([]validate.Finding, 0, len(violations))
	for _, v := range violations {
		findings = append(findings, validate.BoundaryFinding(v))
	}
	findings = append(findings, validate.PostValidate(stored, time.Now().UTC())...)
	report.Findings = findings
	return report, nil
}

// scanGroups runs the flow engine over every (account, symbol) group.
// Groups share no mutable state, so a bounded worker pool scans them
// concurrently; the merged output is re-sorted for determinism.
func (c *Coordinator) scanGroups(ctx context.Context, groups map[flow.GroupKey][]schema.Execution) ([]schema.Position, []flow.Violation, error) {
	keys := flow.SortedKeys(groups)
	if len(keys) == 0 {
		return nil, nil, ctx.Err()
	}

	workers := c.cfg.Workers
	if workers > len(keys) {
		workers = len(keys)
	}

	var (
		mu         sync.Mutex
		positions  []schema.Position
		violations []flow.Violation
		scanErr    error
	)

	jobs := make(chan flow.GroupKey)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				if ctx.Err() != nil {
					continue
				}
				res, err := flow.Scan(groups[key], c.cfg.Registry.PointValue(key.Symbol))
				mu.Lock()
				if err != nil {
					if scanErr == nil {
						scanErr = errors.Wrapf(err, "scan group %s/%s", key.Account, key.Symbol)
					}
				} else {
					positions = append(positions, res.Positions...)
					violations = append(violations, res.Violations...)
				}
				mu.Unlock()
			}
		}()
	}
	for _, key := range keys {
		jobs <- key
	}
	close(jobs)
	wg.Wait()

	if scanErr != nil {
		return nil, nil, scanErr
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.ExecutionID < b.ExecutionID
	})
	return positions, violations, nil
}

func (c *Coordinator) flushIntake(ctx context.Context) error {
	queued := c.queue.Drain()
	if len(queued) == 0 {
		return nil
	}
	if err := c.cfg.Sink.AddExecutions(ctx, queued); err != nil {
		return errors.Wrap(err, "flush queued executions")
	}
	logs.Infof("flushed %d queued executions into the store", len(queued))
	return nil
}
