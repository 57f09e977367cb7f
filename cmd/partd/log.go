package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the partition's phase, tips, and element counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := requireDir()
		if err != nil {
			return err
		}
		p, err := openPartition(dir)
		if err != nil {
			return err
		}

		fmt.Println("phase:", p.Phase())
		for _, t := range p.Tips() {
			fmt.Printf("  tip %s\n", t.String())
		}
		if !p.MergeRequired() {
			tip, err := p.Tip()
			if err != nil {
				return err
			}
			fmt.Println("elements:", tip.NumAvail())
		} else {
			fmt.Println(styleHint.Render("multiple tips: run `partd merge` to reconcile"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
}
