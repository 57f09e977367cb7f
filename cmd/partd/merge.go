package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/untoldecay/partitionstore/internal/merge"
)

var mergePrefer string

// preferSolver resolves a genuine conflict (both sides changed an element
// relative to their common ancestor) by always keeping one named side,
// matching the "ours"/"theirs" convention of simple two-way merge tools.
// It never invents a value: a conflict where the preferred side removed
// the element keeps the other side's version, and the element is dropped
// only when neither side has it.
type preferSolver struct{ preferA bool }

func (s preferSolver) Solve(t merge.Triple[textElt]) (textElt, bool, error) {
	primary, secondary := t.A, t.B
	if !s.preferA {
		primary, secondary = t.B, t.A
	}
	if primary != nil {
		return *primary, true, nil
	}
	if secondary != nil {
		return *secondary, true, nil
	}
	return "", false, nil
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Drive two-way merges until a single tip remains",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := requireDir()
		if err != nil {
			return err
		}
		p, err := openPartition(dir)
		if err != nil {
			return err
		}
		if !p.MergeRequired() {
			fmt.Println(styleHint.Render("already at a single tip; nothing to merge"))
			return nil
		}

		var solver preferSolver
		switch mergePrefer {
		case "a":
			solver = preferSolver{preferA: true}
		case "b":
			solver = preferSolver{preferA: false}
		default:
			return fmt.Errorf("--prefer must be \"a\" or \"b\", got %q", mergePrefer)
		}

		if err := p.Merge(solver, time.Now()); err != nil {
			return err
		}
		if _, err := p.Write(flagFast); err != nil {
			return err
		}

		tip, err := p.Tip()
		if err != nil {
			return err
		}
		fmt.Println(styleOK.Render("merged"), "tip:", tip.StateSum.String())
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergePrefer, "prefer", "a", "which side wins a genuine conflict: a or b")
	rootCmd.AddCommand(mergeCmd)
}
