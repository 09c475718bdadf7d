package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fareflow/collector"
	"fareflow/diag"
	"fareflow/internal/fixture"
	"fareflow/models"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Print the equivalence key and group of every fare market without collecting fares",
	Args:  cobra.NoArgs,
	RunE:  runKeys,
}

func runKeys(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	fx, err := fixture.Load(fixturePath)
	if err != nil {
		return err
	}
	trx, err := fx.Build()
	if err != nil {
		return err
	}
	refs, closeRefs, err := openReferenceData(ctx, cfg, fx)
	if err != nil {
		return err
	}
	defer closeRefs()

	c, err := newCollector(cfg, fx, refs, diag.Discard{})
	if err != nil {
		return err
	}
	reg, err := c.Plan(ctx, trx)
	if err != nil {
		return err
	}

	groups := make(map[models.FareMarketID]*collector.Group)
	for _, g := range reg.Groups() {
		for _, fm := range g.Members {
			groups[fm.ID] = g
		}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "FM\tMARKET\tREPRESENTATIVE\tKEY\n")
	for _, fm := range trx.FareMarkets() {
		rep, key := "-", fm.FailCode.String()
		if g, ok := groups[fm.ID]; ok {
			rep, key = fmt.Sprint(g.Representative().ID), string(g.Key)
		}
		fmt.Fprintf(tw, "%d\t%s-%s\t%s\t%s\n", fm.ID, fm.Origin(), fm.Destination(), rep, key)
	}
	return tw.Flush()
}
