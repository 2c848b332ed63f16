// Package seen inspects the already-alerted listing set.
package seen

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"carwatch/models"
	"carwatch/pkg/seenset"
)

// SeenAction prints the alerted-listing count, or every identity with
// --list.
func SeenAction(c *cli.Context) error {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	set, err := seenset.Load(cfg.Storage.SeenFile)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("%d listings have been alerted.\n", set.Len())
	if c.Bool("list") {
		for _, url := range set.Items() {
			fmt.Println(url)
		}
	}
	return nil
}
