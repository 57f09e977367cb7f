package main

import (
	"fmt"

	"github.com/untoldecay/partitionstore/internal/config"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/ioadapter/fsio"
	"github.com/untoldecay/partitionstore/partition"
)

// openPartition reads dir's partition.toml override for the partition id
// written at create time, opens the fsio adapter, and loads the partition
// in the mode flagFast selects.
func openPartition(dir string) (*partition.Partition[textElt], error) {
	settings := config.Resolve()

	override, err := config.LoadPartitionOverride(overridePath(dir))
	if err != nil {
		return nil, err
	}
	if override.PartitionId == nil {
		return nil, fmt.Errorf("%s has no partition.toml; was it created with partd create?", dir)
	}
	partId, err := ids.FromNum(*override.PartitionId)
	if err != nil {
		return nil, err
	}

	adapter, err := fsio.New(dir)
	if err != nil {
		return nil, err
	}
	adapter.LockTimeout = settings.LockTimeout

	p := partition.Open[textElt](adapter, partId, textCodec{},
		partition.WithSink[textElt](sink),
		partition.WithSnapshotThreshold[textElt](settings.SnapshotThreshold))
	if err := p.Load(flagFast); err != nil {
		return nil, fmt.Errorf("loading %s: %w", dir, err)
	}
	return p, nil
}
