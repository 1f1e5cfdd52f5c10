package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"pricewatch-backend/lib/browser"
	"pricewatch-backend/lib/configutil"
	"pricewatch-backend/lib/docstore"
	"pricewatch-backend/lib/domains"
	"pricewatch-backend/lib/serviceutil"
	"pricewatch-backend/lib/telemetry"
	"pricewatch-backend/services/scrapeworker"
	"pricewatch-backend/services/snapshots"
)

func main() {
	verbose := flag.Bool("v", false, "Enables verbose/debug mode.")
	flag.Parse()

	godotenv.Load()
	telemetry.InitSlog(*verbose)

	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "scrapeworkerd")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	if err == nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
			defer cancel()
			err := tel.Shutdown(shutdownCtx)
			if err != nil {
				slog.Warn("failed to shutdown telemetry", "err", err)
			}
		}()
	}
	telemetry.InstrumentPerfStats(ctx)

	cfg := scrapeworker.ConfigFromEnv()
	store, err := openStore()
	if err != nil {
		serviceutil.Fatal("failed to open document store", err)
	}
	defer store.Close()

	b, err := browser.NewFetchBrowser(browser.FetchOptions{UserAgent: cfg.UserAgent})
	if err != nil {
		serviceutil.Fatal("failed to initialize browser", err)
	}
	defer b.Close()

	worker := scrapeworker.NewService(store, b, domains.Default(), cfg)

	mux := http.NewServeMux()
	snapshots.NewService(store, cfg.SnapshotsCollection).RegisterHandlers(mux)
	worker.Queue().RegisterHandlers(mux)
	go serviceutil.StartHttpServer(configutil.GetEnvInt("PORT", 8000), mux)

	worker.Run(ctx)
}

// openStore picks the remote store when DOCSTORE_URL is set, otherwise
// a local sqlite file.
func openStore() (*docstore.Store, error) {
	if url := os.Getenv("DOCSTORE_URL"); url != "" {
		return docstore.OpenRemote(url)
	}
	return docstore.Open(configutil.GetEnv("DOCSTORE_PATH", "data/pricewatch.db"))
}
