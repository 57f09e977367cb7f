package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push [text]",
	Short: "Push a text element onto the current tip and flush to disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := requireDir()
		if err != nil {
			return err
		}
		p, err := openPartition(dir)
		if err != nil {
			return err
		}

		tip, err := p.Tip()
		if err != nil {
			return fmt.Errorf("%w (run `partd log` and `partd merge` first)", err)
		}

		child := tip.CloneChild(time.Now())
		id, err := child.Insert(textElt(args[0]))
		if err != nil {
			return err
		}
		if _, err := p.PushState(child); err != nil {
			return err
		}
		if _, err := p.Write(flagFast); err != nil {
			return err
		}

		newTip, err := p.Tip()
		if err != nil {
			return err
		}
		fmt.Println(styleOK.Render("pushed"), "id:", id.String(), "tip:", newTip.StateSum.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
