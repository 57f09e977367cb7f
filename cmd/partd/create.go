package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/partitionstore/internal/config"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/ioadapter/fsio"
	"github.com/untoldecay/partitionstore/partition"
)

var (
	createName string
	createId   uint64
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new partition directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := requireDir()
		if err != nil {
			return err
		}
		settings := config.Resolve()

		id := createId
		if id == 0 {
			id = settings.DefaultPartitionId
		}
		partId, err := ids.FromNum(id)
		if err != nil {
			return err
		}

		adapter, err := fsio.New(dir)
		if err != nil {
			return err
		}
		adapter.LockTimeout = settings.LockTimeout

		p, err := partition.Create[textElt](adapter, createName, partId, textCodec{},
			partition.WithSink[textElt](sink),
			partition.WithSnapshotThreshold[textElt](settings.SnapshotThreshold))
		if err != nil {
			return err
		}

		partNum := partId.Num()
		if err := config.SavePartitionOverride(overridePath(dir), config.PartitionOverride{
			PartitionId: &partNum,
		}); err != nil {
			return err
		}

		tip, err := p.TipKey()
		if err != nil {
			return err
		}
		fmt.Println(styleOK.Render("created"), dir, "repo:", createName, "partition:", partId.Num(), "tip:", tip.String())
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "repository name, 1-16 bytes (required)")
	createCmd.Flags().Uint64Var(&createId, "id", 0, "partition number (defaults to config's partition.default-id)")
	createCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(createCmd)
}
