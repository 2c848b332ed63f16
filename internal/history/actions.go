// Package history shows recent pipeline runs from the ledger.
package history

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"carwatch/models"
	"carwatch/pkg/db"
)

// HistoryAction prints the most recent runs, newest first.
func HistoryAction(c *cli.Context) error {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	database, err := db.Open(cfg.Storage.HistoryDB)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer database.Close()

	runs, err := database.RecentRuns(c.Int("limit"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	fmt.Printf("%-5s %-20s %-8s %8s %10s %8s %6s\n",
		"RUN", "STARTED", "STATUS", "BATCHES", "EXTRACTED", "STORED", "HITS")
	for _, r := range runs {
		fmt.Printf("%-5d %-20s %-8s %8d %10d %8d %6d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status,
			r.Batches, r.Extracted, r.Stored, r.Hits)
	}
	return nil
}
