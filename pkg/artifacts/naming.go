// Package artifacts maps identifiers to the files a pipeline run reads and writes.
//
// Every name is a fixed prefix and suffix wrapped around the identifier, so
// each convention is injective: two distinct identifiers never share a
// trigger, output, or intermediate name. The reverse classifiers (IsTrigger,
// IsOutput, ...) let cleanup walk a directory and pick out generated files
// without shell globbing.
package artifacts

import (
	"fmt"
	"strings"
	"time"
)

// Naming holds the fixed literals of every artifact convention.
type Naming struct {
	TriggerPrefix      string `yaml:"trigger_prefix"`
	TriggerSuffix      string `yaml:"trigger_suffix" validate:"required"`
	OutputPrefix       string `yaml:"output_prefix"`
	OutputSuffix       string `yaml:"output_suffix" validate:"required"`
	IntermediateSuffix string `yaml:"intermediate_suffix"`
	ArchivePrefix      string `yaml:"archive_prefix" validate:"required"`
	ArchiveTimeLayout  string `yaml:"archive_time_layout" validate:"required"`
	ArchiveExtension   string `yaml:"archive_extension" validate:"required"`
}

// DefaultNaming returns the conventions used by the PDBePISA interface workflow.
func DefaultNaming() Naming {
	return Naming{
		TriggerPrefix:      "pdb_",
		TriggerSuffix:      "_intf_2_df.txt",
		OutputPrefix:       "",
		OutputSuffix:       "_PISAinterface_summary_pickled_df.pkl",
		IntermediateSuffix: "_interface_list.txt",
		ArchivePrefix:      "collection_of_interface_dfs",
		ArchiveTimeLayout:  "Jan0220061504",
		ArchiveExtension:   "tar.gz",
	}
}

// Namer derives artifact names from identifiers. It is safe for concurrent use.
type Namer struct {
	n Naming
}

// NewNamer validates the conventions and returns a Namer.
func NewNamer(n Naming) (*Namer, error) {
	literals := map[string]string{
		"trigger prefix":      n.TriggerPrefix,
		"trigger suffix":      n.TriggerSuffix,
		"output prefix":       n.OutputPrefix,
		"output suffix":       n.OutputSuffix,
		"intermediate suffix": n.IntermediateSuffix,
		"archive prefix":      n.ArchivePrefix,
		"archive extension":   n.ArchiveExtension,
	}
	for field, v := range literals {
		if strings.ContainsAny(v, `/\`) {
			return nil, fmt.Errorf("%s %q must not contain a path separator", field, v)
		}
	}

	if n.TriggerSuffix == "" || n.OutputSuffix == "" {
		return nil, fmt.Errorf("trigger and output suffixes are required")
	}
	if n.TriggerPrefix == n.OutputPrefix && n.TriggerSuffix == n.OutputSuffix {
		return nil, fmt.Errorf("trigger and output conventions must differ")
	}
	if n.IntermediateSuffix != "" &&
		(n.IntermediateSuffix == n.TriggerSuffix || n.IntermediateSuffix == n.OutputSuffix) {
		return nil, fmt.Errorf("intermediate suffix must differ from trigger and output suffixes")
	}
	if n.ArchivePrefix == "" || n.ArchiveExtension == "" || n.ArchiveTimeLayout == "" {
		return nil, fmt.Errorf("archive prefix, time layout and extension are required")
	}

	return &Namer{n: n}, nil
}

// MustNamer is NewNamer for conventions known to be valid.
func MustNamer(n Naming) *Namer {
	namer, err := NewNamer(n)
	if err != nil {
		panic(err)
	}
	return namer
}

// Naming returns a copy of the conventions.
func (m *Namer) Naming() Naming {
	return m.n
}

// TriggerName returns the trigger artifact name for id.
func (m *Namer) TriggerName(id string) string {
	return m.n.TriggerPrefix + id + m.n.TriggerSuffix
}

// OutputName returns the output artifact name for id.
func (m *Namer) OutputName(id string) string {
	return m.n.OutputPrefix + id + m.n.OutputSuffix
}

// IntermediateName returns the transformer's intermediate file name for id,
// or "" when no intermediate convention is configured.
func (m *Namer) IntermediateName(id string) string {
	if m.n.IntermediateSuffix == "" {
		return ""
	}
	return id + m.n.IntermediateSuffix
}

// ArchiveName returns the archive name for a run started at t.
func (m *Namer) ArchiveName(t time.Time) string {
	return m.n.ArchivePrefix + t.Format(m.n.ArchiveTimeLayout) + "." + m.n.ArchiveExtension
}

// ArchiveNameSeq returns the archive name for a run started at t when the
// minute-resolution name is already taken. Seconds are appended to the
// timestamp, and seq > 0 adds a "_<seq>" suffix for runs in the same second.
func (m *Namer) ArchiveNameSeq(t time.Time, seq int) string {
	stamp := t.Format(m.n.ArchiveTimeLayout + "05")
	if seq > 0 {
		stamp += fmt.Sprintf("_%d", seq)
	}
	return m.n.ArchivePrefix + stamp + "." + m.n.ArchiveExtension
}

// IsTrigger reports whether name follows the trigger convention and returns
// the identifier embedded in it.
func (m *Namer) IsTrigger(name string) (string, bool) {
	return unwrap(name, m.n.TriggerPrefix, m.n.TriggerSuffix)
}

// IsOutput reports whether name follows the output convention.
func (m *Namer) IsOutput(name string) (string, bool) {
	return unwrap(name, m.n.OutputPrefix, m.n.OutputSuffix)
}

// IsIntermediate reports whether name follows the intermediate convention.
func (m *Namer) IsIntermediate(name string) (string, bool) {
	if m.n.IntermediateSuffix == "" {
		return "", false
	}
	return unwrap(name, "", m.n.IntermediateSuffix)
}

// IsArchive reports whether name looks like an archive produced by any run.
func (m *Namer) IsArchive(name string) bool {
	_, ok := unwrap(name, m.n.ArchivePrefix, "."+m.n.ArchiveExtension)
	return ok
}

func unwrap(name, prefix, suffix string) (string, bool) {
	if len(name) < len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	return name[len(prefix) : len(name)-len(suffix)], true
}
