package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"pricewatch-backend/cmd/pricewatch-cli/utils"
	"pricewatch-backend/internal/models"
	"pricewatch-backend/lib/docstore"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and create scrape jobs.",
}

var (
	enqueueProduct  string
	enqueueURLs     []string
	enqueueFxRates  []string
	enqueuePriority int
)

var jobsEnqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a scrape job for a product.",
	Run: func(cmd *cobra.Command, args []string) {
		fxRates := map[string]float64{}
		for _, pair := range enqueueFxRates {
			code, rate, ok := strings.Cut(pair, "=")
			if !ok {
				fmt.Fprintf(os.Stderr, "invalid fx rate %q, expected CODE=RATE\n", pair)
				os.Exit(1)
			}
			value, err := strconv.ParseFloat(rate, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid fx rate %q: %v\n", pair, err)
				os.Exit(1)
			}
			fxRates[strings.ToUpper(code)] = value
		}

		jobID, err := queue.Enqueue(context.Background(), enqueueProduct, enqueueURLs, fxRates, enqueuePriority)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("enqueued:", jobID)
	},
}

var (
	listStatus string
	listLimit  int
)

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scrape jobs, most recent first.",
	Run: func(cmd *cobra.Command, args []string) {
		query := docstore.Query{
			OrderBy: "createdAt",
			Desc:    true,
			Limit:   listLimit,
		}
		if listStatus != "" {
			query.Filters = append(query.Filters, docstore.Where("status", "==", listStatus))
		}
		collection := store.Collection(queue.CollectionName())
		docs, err := collection.Run(context.Background(), query)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"Job", "Product", "Status", "Attempts", "URLs", "Created", "Snapshot", "Error"})
		for _, doc := range docs {
			var job models.ScrapeJob
			if err := doc.Decode(&job); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			t.AppendRow(table.Row{
				job.JobID,
				job.ProductID,
				job.Status,
				job.Attempts,
				len(job.URLs),
				job.CreatedAt.Format("2006-01-02 15:04:05"),
				job.SnapshotID,
				job.LastError,
			})
		}
		t.Render()
	},
}

func init() {
	jobsEnqueueCmd.Flags().StringVar(&enqueueProduct, "product", "", "product id to scrape for")
	jobsEnqueueCmd.Flags().StringArrayVar(&enqueueURLs, "url", nil, "competitor URL (repeatable)")
	jobsEnqueueCmd.Flags().StringArrayVar(&enqueueFxRates, "fx", nil, "fx rate as CODE=RATE, e.g. EUR=1.08 (repeatable)")
	jobsEnqueueCmd.Flags().IntVar(&enqueuePriority, "priority", 0, "job priority")
	jobsEnqueueCmd.MarkFlagRequired("product")
	jobsEnqueueCmd.MarkFlagRequired("url")

	jobsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (queued/running/succeeded/failed)")
	jobsListCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum rows to show")

	jobsCmd.AddCommand(jobsEnqueueCmd)
	jobsCmd.AddCommand(jobsListCmd)
	rootCmd.AddCommand(jobsCmd)
}
