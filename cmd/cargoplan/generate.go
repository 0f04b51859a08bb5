package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cargoplan/internal/ingest"
)

var genFlags struct {
	count int
	out   string
	seed  int64
	start string
	dests []string
}

var generateOrdersCmd = &cobra.Command{
	Use:   "generate-orders",
	Short: "Write a synthetic orders CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if genFlags.count <= 0 {
			return fmt.Errorf("--count must be positive")
		}
		start := time.Now().UTC().Truncate(24 * time.Hour)
		if genFlags.start != "" {
			t, err := time.Parse("2006-01-02", genFlags.start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			start = t
		}
		seed := genFlags.seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		orders := ingest.GenerateOrders(rand.New(rand.NewSource(seed)), genFlags.count, genFlags.dests, start)

		w := cmd.OutOrStdout()
		if genFlags.out != "" && genFlags.out != "-" {
			f, err := os.Create(genFlags.out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := ingest.WriteOrders(w, orders); err != nil {
			return err
		}
		if genFlags.out != "" && genFlags.out != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d orders to %s (seed %d)\n", len(orders), genFlags.out, seed)
		}
		return nil
	},
}

func init() {
	f := generateOrdersCmd.Flags()
	f.IntVar(&genFlags.count, "count", 100, "number of orders")
	f.StringVarP(&genFlags.out, "out", "o", "-", "output file (- for stdout)")
	f.Int64Var(&genFlags.seed, "seed", 0, "random seed (0 picks one)")
	f.StringVar(&genFlags.start, "start", "", "first ready day, YYYY-MM-DD (default today)")
	f.StringSliceVar(&genFlags.dests, "dest", nil, "destination airports (default: built-in list)")
}
