// Package queries manages the saved interest queries from the CLI.
package queries

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"carwatch/models"
	"carwatch/pkg/querystore"
)

func queriesFile(c *cli.Context) (string, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return "", err
	}
	return cfg.Storage.QueriesFile, nil
}

// ListAction prints the saved queries in match order.
func ListAction(c *cli.Context) error {
	path, err := queriesFile(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	queryList, err := querystore.Load(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if len(queryList) == 0 {
		fmt.Println("No saved queries.")
		return nil
	}

	for i, q := range queryList {
		if q.Brand != "" {
			fmt.Printf("%2d. %s  [brand: %s]\n", i+1, q.Text, q.Brand)
		} else {
			fmt.Printf("%2d. %s\n", i+1, q.Text)
		}
	}
	return nil
}

// AddAction appends a query to the list.
func AddAction(c *cli.Context) error {
	path, err := queriesFile(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	queryList, err := querystore.Load(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	queryList = append(queryList, models.Query{
		Text:  c.String("text"),
		Brand: c.String("brand"),
	})
	if err := querystore.Save(path, queryList); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Added query %d.\n", len(queryList))
	return nil
}

// RemoveAction deletes a query by its 1-based position.
func RemoveAction(c *cli.Context) error {
	path, err := queriesFile(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	queryList, err := querystore.Load(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	idx := c.Int("index")
	if idx < 1 || idx > len(queryList) {
		return cli.Exit(fmt.Sprintf("index %d out of range (1-%d)", idx, len(queryList)), 1)
	}

	removed := queryList[idx-1]
	queryList = append(queryList[:idx-1], queryList[idx:]...)
	if err := querystore.Save(path, queryList); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("Removed query %q.\n", removed.Text)
	return nil
}
