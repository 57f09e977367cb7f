package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var writeSnapshot bool

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Flush unsaved commits to disk, optionally forcing a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := requireDir()
		if err != nil {
			return err
		}
		p, err := openPartition(dir)
		if err != nil {
			return err
		}
		if writeSnapshot {
			p.RequireSnapshot()
		}
		wrote, err := p.Write(flagFast && !writeSnapshot)
		if err != nil {
			return err
		}
		if wrote {
			fmt.Println(styleOK.Render("wrote"), "commit log flushed")
		} else {
			fmt.Println(styleHint.Render("nothing to write"))
		}
		return nil
	},
}

func init() {
	writeCmd.Flags().BoolVar(&writeSnapshot, "snapshot", false, "force a snapshot on this write regardless of policy")
	rootCmd.AddCommand(writeCmd)
}
