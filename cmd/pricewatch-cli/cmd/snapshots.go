package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"pricewatch-backend/cmd/pricewatch-cli/utils"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect competitor price snapshots.",
}

var showProduct string

var snapshotsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the latest snapshot for a product.",
	Run: func(cmd *cobra.Command, args []string) {
		snapshot, err := snapshotsSvc.LatestByProduct(context.Background(), showProduct)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if snapshot == nil {
			fmt.Println("no snapshot for product", showProduct)
			return
		}

		fmt.Println("snapshot:", snapshot.SnapshotID)
		fmt.Println("job:", snapshot.JobID)
		fmt.Println("scraped at:", snapshot.ScrapedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("outcome: %d succeeded, %d failed, %d blocked\n",
			snapshot.Stats.SuccessCount,
			snapshot.Stats.FailureCount,
			snapshot.Stats.BlockedCount)
		fmt.Println("pricing status:", snapshot.PricingStatus)

		t := utils.NewTable()
		t.AppendHeader(table.Row{"Hostname", "Status", "Price (USD)", "Currency", "Raw", "Reason", "Latency"})
		for _, c := range snapshot.Competitors {
			price := ""
			if c.ParsedPriceUSD != nil {
				price = fmt.Sprintf("%.2f", *c.ParsedPriceUSD)
			}
			currency := ""
			if c.Currency != nil {
				currency = *c.Currency
			}
			raw := ""
			if c.RawPriceText != nil {
				raw = *c.RawPriceText
			}
			if len(raw) > 40 {
				raw = raw[:40] + "..."
			}
			reason := ""
			if c.ErrorReason != nil {
				reason = *c.ErrorReason
			}
			t.AppendRow(table.Row{
				c.Hostname,
				c.Status,
				price,
				currency,
				raw,
				reason,
				fmt.Sprintf("%dms", c.LatencyMs),
			})
		}
		t.Render()
	},
}

func init() {
	snapshotsShowCmd.Flags().StringVar(&showProduct, "product", "", "product id")
	snapshotsShowCmd.MarkFlagRequired("product")

	snapshotsCmd.AddCommand(snapshotsShowCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
