package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/dailyledger/internal/grid"
	"github.com/angelmondragon/dailyledger/internal/ledger"
	"github.com/angelmondragon/dailyledger/internal/sheets"
	"github.com/angelmondragon/dailyledger/pkg/config"
	"github.com/angelmondragon/dailyledger/pkg/db"
	"github.com/angelmondragon/dailyledger/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "ledger-export", Output: os.Stderr})

	_ = godotenv.Load()

	tenant := flag.String("tenant", "", "tenant whose orders ledger is exported")
	flag.Parse()

	if *tenant == "" {
		fmt.Fprintln(os.Stderr, "missing -tenant")
		os.Exit(1)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "ledger-export",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	sheetID, ok := cfg.Ledger.SheetID(*tenant)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown tenant %q\n", *tenant)
		os.Exit(1)
	}
	ctx = logg.WithTenant(ctx, *tenant)
	ctx = logg.WithSheetID(ctx, sheetID)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	store := sheets.NewGormStore(dbClient.DB())
	grids, err := store.ReadGrids(ctx, sheetID, []string{cfg.Ledger.OrdersRange})
	requireResource(ctx, logg, "orders range", err)

	l, warnings := ledger.Parse(grids[cfg.Ledger.OrdersRange])
	logWarnings(ctx, logg, warnings)

	stats, err := writeExport(os.Stdout, os.Stderr, l)
	requireResource(ctx, logg, "csv output", err)

	logg.Info(logg.WithFields(ctx, map[string]any{
		"orders":    len(l.Orders),
		"lines":     stats.Lines,
		"malformed": stats.Malformed,
	}), "ledger exported")
}

func logWarnings(ctx context.Context, logg *logger.Logger, warnings []grid.ParseWarning) {
	for _, w := range warnings {
		logg.Warn(logg.WithFields(ctx, map[string]any{"sheet": w.Sheet, "key": w.Key}), w.Message)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
