// Package export writes the Open Data CSV tables into a dated run directory.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dateLayout    = "2006-01-02"
	LocationsFile = "bike_counters.csv"
	CombinedFile  = "bicycle_counts.csv"
)

// RunDir is the output directory of one run, output_<YYYY-MM-DD> under root.
type RunDir struct {
	Root string
	Date time.Time
}

func NewRunDir(root string, date time.Time) RunDir {
	return RunDir{Root: root, Date: date}
}

func (d RunDir) DateString() string {
	return d.Date.Format(dateLayout)
}

func (d RunDir) Path() string {
	return filepath.Join(d.Root, "output_"+d.DateString())
}

// Ensure creates the directory if it does not exist yet.
func (d RunDir) Ensure() (string, error) {
	dir := d.Path()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

func (d RunDir) LocationsPath() string {
	return filepath.Join(d.Path(), LocationsFile)
}

func (d RunDir) CombinedPath() string {
	return filepath.Join(d.Path(), CombinedFile)
}

// SiteCountsPath is the per-site file, bike_counts_loc_<site>_<date>.csv.
func (d RunDir) SiteCountsPath(site string) string {
	name := fmt.Sprintf("bike_counts_loc_%s_%s.csv", sanitize(site), d.DateString())
	return filepath.Join(d.Path(), name)
}

// sanitize keeps a site id from escaping the run directory.
func sanitize(site string) string {
	return strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(site)
}
