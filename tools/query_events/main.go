package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/patrickwarner/billboardserve/internal/analytics"
	"github.com/patrickwarner/billboardserve/internal/config"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

// query_events prints the eligibility decisions logged for a request ID.
func main() {
	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var id string
	var dsn string
	flag.StringVar(&id, "id", "", "request ID (the X-Request-ID response header)")
	flag.StringVar(&dsn, "dsn", "", "ClickHouse DSN")
	flag.Parse()

	if id == "" {
		fmt.Fprintln(os.Stderr, "id required")
		os.Exit(1)
	}
	if dsn == "" {
		dsn = config.Load().ClickHouseDSN
	}

	a, err := analytics.InitClickHouse(dsn, observability.NewNoOpRegistry())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	decisions, err := a.GetDecisionsByRequestID(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query decisions: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(decisions); err != nil {
		fmt.Fprintf(os.Stderr, "encode decisions: %v\n", err)
		os.Exit(1)
	}
}
