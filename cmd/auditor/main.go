package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/pkg/sys"

	"main/internal/ops"
	"main/internal/rebuild"
	"main/internal/store"
	"main/internal/validate"
	"main/pkg/conn"
)

// auditor runs the validators without touching stored positions and
// prints a JSON report. Exit code 1 means at least one high-severity
// finding needs operator attention.
func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	executionsPath := flag.String("executions", "", "JSON execution batch (uses the in-memory store)")
	account := flag.String("account", "", "Account filter for the audit scope")
	symbol := flag.String("symbol", "", "Instrument filter for the audit scope")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		cancel()
	}()

	loaded := ops.Default()
	if *configPath != "" {
		var err error
		loaded, err = ops.Load(*configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
	}

	source, positions, closeStore, err := buildStores(ctx, loaded, *executionsPath)
	if err != nil {
		log.Fatalf("store setup failed: %v", err)
	}
	defer closeStore()

	coordinator, err := rebuild.New(rebuild.Config{
		Source:    source,
		Positions: positions,
		Registry:  loaded.Registry,
		Workers:   loaded.Rebuild.Workers,
	})
	if err != nil {
		log.Fatalf("coordinator setup failed: %v", err)
	}

	report, err := coordinator.Validate(ctx, store.Scope{Account: *account, Symbol: *symbol})
	if err != nil {
		log.Fatalf("audit failed: %v", err)
	}

	out, err := sonic.ConfigFastest.MarshalIndent(reportView(report), "", "  ")
	if err != nil {
		log.Fatalf("encode report: %v", err)
	}
	fmt.Println(string(out))

	for _, finding := range report.Findings {
		if finding.Severity == validate.SeverityHigh {
			os.Exit(1)
		}
	}
}

func buildStores(ctx context.Context, loaded ops.Loaded, executionsPath string) (store.ExecutionSource, store.PositionStore, func(), error) {
	if executionsPath != "" {
		mem := store.NewMemory()
		execs, err := ops.LoadExecutions(executionsPath)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := mem.AddExecutions(ctx, execs); err != nil {
			return nil, nil, nil, err
		}
		return mem, mem, func() {}, nil
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
		return nil, nil, nil, err
	}
	pg, err := store.NewPostgres(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	closeStore := func() {
		if err := client.Close(); err != nil {
			log.Printf("store close failed: %v", err)
		}
	}
	return pg, pg, closeStore, nil
}

type findingView struct {
	Kind        string   `json:"kind"`
	Severity    string   `json:"severity"`
	Fix         string   `json:"suggestedFix"`
	Account     string   `json:"account"`
	Symbol      string   `json:"symbol"`
	Message     string   `json:"message"`
	ExecutionID uint64   `json:"executionId,omitempty"`
	PositionIDs []string `json:"positionIds,omitempty"`
}

type view struct {
	Scope              string        `json:"scope"`
	StoredPositions    int           `json:"storedPositions"`
	ExecutionsRejected int           `json:"executionsRejected"`
	Warnings           []string      `json:"warnings"`
	Findings           []findingView `json:"findings"`
}

func reportView(report rebuild.Report) view {
	findings := make([]findingView, 0, len(report.Findings))
	for _, f := range report.Findings {
		fv := findingView{
			Kind:        f.Kind.String(),
			Severity:    f.Severity.String(),
			Fix:         f.Fix.String(),
			Account:     f.Account,
			Symbol:      f.Symbol,
			Message:     f.Message,
			ExecutionID: f.ExecutionID,
		}
		for _, id := range f.PositionIDs {
			fv.PositionIDs = append(fv.PositionIDs, id.String())
		}
		findings = append(findings, fv)
	}
	return view{
		Scope:              report.Scope.String(),
		StoredPositions:    report.StoredPositions,
		ExecutionsRejected: report.ExecutionsRejected,
		Warnings:           report.Warnings,
		Findings:           findings,
	}
}
