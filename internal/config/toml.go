package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// PartitionOverride is the schema for a one-off partition.toml file sitting
// next to a partition's data directory, for overrides that don't belong
// in the global YAML config (e.g. pinning a specific partition id when
// testing against a shared fixture).
type PartitionOverride struct {
	PartitionId *uint64 `toml:"partition_id"`
	Remark      string  `toml:"remark"`
}

// LoadPartitionOverride reads path (if it exists) as TOML. A missing file
// is not an error: it returns the zero value.
func LoadPartitionOverride(path string) (PartitionOverride, error) {
	var override PartitionOverride
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return override, nil
	}
	if _, err := toml.DecodeFile(path, &override); err != nil {
		return PartitionOverride{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return override, nil
}

// Apply folds a non-empty override into s, returning the merged result.
func (o PartitionOverride) Apply(s Settings) Settings {
	if o.PartitionId != nil {
		s.DefaultPartitionId = *o.PartitionId
	}
	return s
}

// SavePartitionOverride writes o to path as TOML, creating or truncating
// the file. cmd/partd uses this at `create` time to remember which
// partition id a directory holds, since a PartId (unlike a repo name)
// isn't recoverable from a snapshot header alone.
func SavePartitionOverride(path string, o PartitionOverride) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(o); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
