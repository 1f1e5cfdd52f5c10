package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pricewatch-backend/lib/configutil"
	"pricewatch-backend/lib/docstore"
	"pricewatch-backend/services/scrapeworker"
	"pricewatch-backend/services/snapshots"
)

var (
	store        *docstore.Store
	queue        scrapeworker.Queue
	snapshotsSvc snapshots.Service
)

var rootCmd = &cobra.Command{
	Use:   "pricewatch-cli",
	Short: "pricewatch-cli inspects and feeds the competitor price scrape queue.",
}

func Execute() {
	var err error
	if url := os.Getenv("DOCSTORE_URL"); url != "" {
		store, err = docstore.OpenRemote(url)
	} else {
		store, err = docstore.Open(configutil.GetEnv("DOCSTORE_PATH", "data/pricewatch.db"))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	queue = scrapeworker.NewQueue(store, configutil.GetEnv("SCRAPE_JOBS_COLLECTION", "scrapeJobs"))
	snapshotsSvc = snapshots.NewService(store, configutil.GetEnv("SNAPSHOTS_COLLECTION", "competitorSnapshots"))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
