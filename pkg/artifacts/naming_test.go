package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNamer_DefaultNames(t *testing.T) {
	namer := MustNamer(DefaultNaming())

	if got := namer.TriggerName("6kiv"); got != "pdb_6kiv_intf_2_df.txt" {
		t.Errorf("TriggerName() = %q", got)
	}
	if got := namer.OutputName("6kiv"); got != "6kiv_PISAinterface_summary_pickled_df.pkl" {
		t.Errorf("OutputName() = %q", got)
	}
	if got := namer.IntermediateName("6kiv"); got != "6kiv_interface_list.txt" {
		t.Errorf("IntermediateName() = %q", got)
	}

	runAt := time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC)
	if got := namer.ArchiveName(runAt); got != "collection_of_interface_dfsMar0520241407.tar.gz" {
		t.Errorf("ArchiveName() = %q", got)
	}
	if got := namer.ArchiveNameSeq(runAt, 0); got != "collection_of_interface_dfsMar052024140700.tar.gz" {
		t.Errorf("ArchiveNameSeq(0) = %q", got)
	}
	if got := namer.ArchiveNameSeq(runAt, 2); got != "collection_of_interface_dfsMar052024140700_2.tar.gz" {
		t.Errorf("ArchiveNameSeq(2) = %q", got)
	}
	if !namer.IsArchive(namer.ArchiveNameSeq(runAt, 2)) {
		t.Error("sequenced archive name not classified as archive")
	}
}

func TestNamer_Injective(t *testing.T) {
	namer := MustNamer(DefaultNaming())
	ids := []string{"6kiv", "6KIV", "6kiv_", "_6kiv", "", "6ki", "a_intf_2_df.txt"}

	triggers := make(map[string]string)
	outputs := make(map[string]string)
	for _, id := range ids {
		tn := namer.TriggerName(id)
		if other, ok := triggers[tn]; ok {
			t.Errorf("trigger collision between %q and %q: %s", other, id, tn)
		}
		triggers[tn] = id

		on := namer.OutputName(id)
		if other, ok := outputs[on]; ok {
			t.Errorf("output collision between %q and %q: %s", other, id, on)
		}
		outputs[on] = id

		if tn == on {
			t.Errorf("trigger and output names coincide for %q", id)
		}
	}
}

func TestNamer_Classifiers(t *testing.T) {
	namer := MustNamer(DefaultNaming())

	id, ok := namer.IsTrigger("pdb_6kiv_intf_2_df.txt")
	if !ok || id != "6kiv" {
		t.Errorf("IsTrigger() = %q, %v", id, ok)
	}
	if _, ok := namer.IsTrigger("6kiv_PISAinterface_summary_pickled_df.pkl"); ok {
		t.Error("output classified as trigger")
	}

	id, ok = namer.IsOutput("6kiv_PISAinterface_summary_pickled_df.pkl")
	if !ok || id != "6kiv" {
		t.Errorf("IsOutput() = %q, %v", id, ok)
	}

	id, ok = namer.IsIntermediate("6kiv_interface_list.txt")
	if !ok || id != "6kiv" {
		t.Errorf("IsIntermediate() = %q, %v", id, ok)
	}
	if _, ok := namer.IsIntermediate("pdb_6kiv_intf_2_df.txt"); ok {
		t.Error("trigger classified as intermediate")
	}

	if !namer.IsArchive("collection_of_interface_dfsMar0520241407.tar.gz") {
		t.Error("archive not recognised")
	}
	if namer.IsArchive("collection_of_interface_dfs.zip") {
		t.Error("foreign extension recognised as archive")
	}
	if _, ok := namer.IsTrigger("pdb_"); ok {
		t.Error("short name classified as trigger")
	}
}

func TestNewNamer_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Naming)
	}{
		{"separator in prefix", func(n *Naming) { n.TriggerPrefix = "sub/pdb_" }},
		{"backslash in suffix", func(n *Naming) { n.OutputSuffix = `\x.pkl` }},
		{"same conventions", func(n *Naming) {
			n.OutputPrefix = n.TriggerPrefix
			n.OutputSuffix = n.TriggerSuffix
		}},
		{"missing trigger suffix", func(n *Naming) { n.TriggerSuffix = "" }},
		{"intermediate equals output", func(n *Naming) { n.IntermediateSuffix = n.OutputSuffix }},
		{"missing archive layout", func(n *Naming) { n.ArchiveTimeLayout = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := DefaultNaming()
			tt.mutate(&n)
			if _, err := NewNamer(n); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNamer_NoIntermediateConvention(t *testing.T) {
	n := DefaultNaming()
	n.IntermediateSuffix = ""
	namer := MustNamer(n)

	if got := namer.IntermediateName("6kiv"); got != "" {
		t.Errorf("IntermediateName() = %q, want empty", got)
	}
	if _, ok := namer.IsIntermediate("6kiv_interface_list.txt"); ok {
		t.Error("expected no intermediate classification")
	}
}

func TestManifest(t *testing.T) {
	namer := MustNamer(DefaultNaming())

	m, err := NewManifest(namer, []string{"6kiv", "6kix"})
	if err != nil {
		t.Fatalf("NewManifest() error = %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d", m.Len())
	}
	want := Entry{
		ID:           "6kix",
		Trigger:      "pdb_6kix_intf_2_df.txt",
		Output:       "6kix_PISAinterface_summary_pickled_df.pkl",
		Intermediate: "6kix_interface_list.txt",
	}
	if diff := cmp.Diff(want, m.Entries()[1]); diff != "" {
		t.Errorf("Entries()[1] mismatch (-want +got):\n%s", diff)
	}

	entries := m.Entries()
	entries[0].ID = "mutated"
	if m.Entries()[0].ID != "6kiv" {
		t.Error("Entries() exposed internal state")
	}

	if _, err := NewManifest(namer, []string{"a", "a"}); err == nil {
		t.Error("expected error for duplicate ids")
	}
}

func TestFileHelpers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")

	ok, err := Exists(path)
	if err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v", ok, err)
	}

	if err := WriteFileAtomic(path, []byte("6kiv"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "6kiv" {
		t.Fatalf("read back %q, %v", data, err)
	}

	ok, err = Exists(path)
	if err != nil || !ok {
		t.Fatalf("Exists(present) = %v, %v", ok, err)
	}

	if _, err := Exists(dir); err == nil {
		t.Error("expected error for directory")
	}

	removed, err := RemoveIfExists(path)
	if err != nil || !removed {
		t.Fatalf("RemoveIfExists(present) = %v, %v", removed, err)
	}
	removed, err = RemoveIfExists(path)
	if err != nil || removed {
		t.Fatalf("RemoveIfExists(missing) = %v, %v", removed, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestPartialBase(t *testing.T) {
	base, ok := PartialBase(".tool.py.partial-123")
	if !ok || base != "tool.py" {
		t.Errorf("PartialBase() = %q, %v", base, ok)
	}
	if _, ok := PartialBase("tool.py"); ok {
		t.Error("final file classified as partial")
	}
	if _, ok := PartialBase(".partial-1"); ok {
		t.Error("marker without base classified as partial")
	}
}
