package config

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// sectionComments annotate the top-level keys of the generated file.
var sectionComments = map[string]string{
	"work_dir":    "Directory holding the identifier list and every generated file.",
	"identifiers": "Identifier list, one PDB code per line. Append codes and re-run.",
	"jobs":        "Maximum concurrent transformer processes.",
	"duplicates":  "Repeated identifiers: collapse (keep first, warn) or reject.",
	"cleanup":     "Remove the shared script and intermediate lists after archiving.",
	"protect":     "Extra file names that clean and dev-reset never delete.",
	"naming":      "Artifact naming conventions. Changing them orphans existing outputs.",
	"resource":    "Shared transformer script, fetched once per run when missing.",
	"transformer": "Command run per identifier. Placeholders: {id} {resource} {workdir}.",
	"history":     "SQLite run history, shown by `intfdf history`.",
	"publish":     "Optional archive upload: none, sftp or s3.",
	"watch":       "Settings for `intfdf watch`.",
	"telemetry":   "Logging, tracing and metrics.",
}

// Template renders cfg as a commented YAML document.
func Template(cfg *Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}

	doc.HeadComment = "intfdf configuration.\nValues shown are the defaults; delete any key to keep its default."
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if c, ok := sectionComments[key.Value]; ok {
			key.HeadComment = c
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to render configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
