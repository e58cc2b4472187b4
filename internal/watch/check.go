// Package watch validates stimulus catalogs, once or every time the file
// changes on disk.
package watch

import (
	"time"

	"randomizer/internal/pairing"
	"randomizer/internal/stimulus"
)

// Report is the outcome of validating a catalog file.
type Report struct {
	Path    string
	Catalog stimulus.Catalog
	Err     error
	At      time.Time
}

// OK reports whether the catalog can start an experiment.
func (r Report) OK() bool {
	return r.Err == nil
}

// Check loads the catalog at path and verifies that it pairs. The pairing
// draw itself is discarded; only its success matters.
func Check(path string) Report {
	report := Report{Path: path, At: time.Now()}
	catalog, err := stimulus.LoadCatalogFile(path)
	if err != nil {
		report.Err = err
		return report
	}
	report.Catalog = catalog
	if _, err := pairing.Build(catalog, pairing.NewRand(1)); err != nil {
		report.Err = err
	}
	return report
}
