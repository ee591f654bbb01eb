package main

import (
	"context"
	"flag"
	"log"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/pkg/sys"

	"main/internal/obs"
	"main/internal/ops"
	"main/internal/rebuild"
	"main/internal/store"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	executionsPath := flag.String("executions", "", "JSON execution batch (uses the in-memory store)")
	account := flag.String("account", "", "Account filter for the rebuild scope")
	symbol := flag.String("symbol", "", "Instrument filter for the rebuild scope")
	verify := flag.Bool("verify", false, "Rebuild twice and require value-identical position sets")
	profileAddr := flag.String("profile-addr", "", "Pyroscope server address (empty=disable)")
	flag.Parse()

	if *profileAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "position-rebuilder",
			ServerAddress:   *profileAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer profiler.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		cancel()
	}()

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	metrics := obs.NewMetrics()
	source, positions, sink, closeStore, err := buildStores(ctx, loaded, *executionsPath)
	if err != nil {
		log.Fatalf("store setup failed: %v", err)
	}
	defer closeStore()

	coordinator, err := rebuild.New(rebuild.Config{
		Source:        source,
		Positions:     positions,
		Sink:          sink,
		Registry:      loaded.Registry,
		Metrics:       metrics,
		Workers:       loaded.Rebuild.Workers,
		QueueCapacity: loaded.Rebuild.QueueCapacity,
	})
	if err != nil {
		log.Fatalf("coordinator setup failed: %v", err)
	}

	scope := store.Scope{Account: *account, Symbol: *symbol}
	result, err := coordinator.Rebuild(ctx, scope)
	if err != nil {
		log.Fatalf("rebuild failed: %v", err)
	}
	printResult(result)

	if *verify {
		if err := verifyIdempotence(ctx, coordinator, positions, scope); err != nil {
			log.Fatalf("verify failed: %v", err)
		}
	}

	snapshot := metrics.Snapshot()
	log.Printf("metrics: rebuilds=%d processed=%d rejected=%d positions=%d findings=%v fetch=%+v scan=%+v validate=%+v swap=%+v",
		snapshot.Rebuilds, snapshot.ExecutionsProcessed, snapshot.ExecutionsRejected, snapshot.PositionsBuilt,
		snapshot.FindingCounts, snapshot.FetchLatency, snapshot.ScanLatency, snapshot.ValidateLatency, snapshot.SwapLatency)
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Default(), nil
	}
	return ops.Load(path)
}

// buildStores wires either the in-memory store fed from a JSON batch
// or the PostgreSQL store from the config.
func buildStores(ctx context.Context, loaded ops.Loaded, executionsPath string) (store.ExecutionSource, store.PositionStore, store.ExecutionSink, func(), error) {
	if executionsPath != "" {
		mem := store.NewMemory()
		execs, err := ops.LoadExecutions(executionsPath)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if err := mem.AddExecutions(ctx, execs); err != nil {
			return nil, nil, nil, nil, err
		}
		return mem, mem, mem, func() {}, nil
	}

	client, err := conn.New(conn.Option{
		Host:     loaded.Store.Host,
		Port:     loaded.Store.Port,
		User:     loaded.Store.User,
		Password: loaded.Store.Password,
		Database: loaded.Store.Database,
		SSLMode:  loaded.Store.SSLMode,
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	pg, err := store.NewPostgres(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, nil, err
	}
	closeStore := func() {
		if err := client.Close(); err != nil {
			log.Printf("store close failed: %v", err)
		}
	}
	return pg, pg, pg, closeStore, nil
}

func verifyIdempotence(ctx context.Context, coordinator *rebuild.Coordinator, positions store.PositionStore, scope store.Scope) error {
	query := store.Query{Account: scope.Account, Symbol: scope.Symbol}
	first, err := positions.Positions(ctx, query)
	if err != nil {
		return err
	}
	if _, err := coordinator.Rebuild(ctx, scope); err != nil {
		return err
	}
	second, err := positions.Positions(ctx, query)
	if err != nil {
		return err
	}
	if !rebuild.SamePositionValues(first, second) {
		return rebuild.ErrNotIdempotent
	}
	log.Printf("verify passed: rebuild is idempotent (%d positions)", len(second))
	return nil
}

func printResult(result rebuild.Result) {
	log.Printf("rebuild %s: positions=%d processed=%d rejected=%d open=%d",
		result.Scope, result.PositionsCreated, result.ExecutionsProcessed,
		result.ExecutionsRejected, result.OpenPositionsRemaining)
	for _, warning := range result.Warnings {
		log.Printf("warning: %s", warning)
	}
	for _, finding := range result.Findings {
		log.Printf("finding: %s", finding)
	}
}
