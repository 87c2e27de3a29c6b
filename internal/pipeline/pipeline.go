// Package pipeline runs one export: locations table, then every site's
// completed-month counts, then the combined table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aliceafriedman/BikeCounters/internal/api"
	"github.com/aliceafriedman/BikeCounters/internal/export"
	"github.com/aliceafriedman/BikeCounters/internal/metrics"
	"github.com/aliceafriedman/BikeCounters/internal/models"
)

// ErrSitesFailed is returned alongside a partial report when some sites
// could not be exported.
var ErrSitesFailed = errors.New("some sites failed to export")

// Fetcher is the part of the counter API the exporter needs.
type Fetcher interface {
	FetchSites(ctx context.Context, token models.AuthToken) ([]models.Location, error)
	FetchCounts(ctx context.Context, token models.AuthToken, site string, step models.Step) ([]models.CountRecord, error)
}

// TokenProvider yields the bearer token for the next request. Reset is
// called at the start of every run.
type TokenProvider interface {
	Token(ctx context.Context) (models.AuthToken, error)
	Reset()
}

// CountSink receives each site's filtered rows after its CSV is written.
type CountSink interface {
	BatchInsertCounts(ctx context.Context, step models.Step, rows []models.CountRecord) error
}

type Options struct {
	OutputRoot string
	Step       models.Step
	// Workers bounds concurrent site fetches. 1 fetches sites in order.
	Workers int
	// Combined also writes the union of all sites' rows.
	Combined bool
	// FailFast aborts the run on the first site failure instead of
	// reporting it at the end.
	FailFast bool
}

type Exporter struct {
	fetcher Fetcher
	tokens  TokenProvider
	sink    CountSink
	metrics *metrics.Collector
	logger  logrus.FieldLogger
	opts    Options
	now     func() time.Time
}

// NewExporter wires a run. sink may be nil.
func NewExporter(fetcher Fetcher, tokens TokenProvider, sink CountSink, m *metrics.Collector, logger logrus.FieldLogger, opts Options) *Exporter {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if m == nil {
		m = metrics.New()
	}
	return &Exporter{
		fetcher: fetcher,
		tokens:  tokens,
		sink:    sink,
		metrics: m,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// SiteResult describes one exported site file.
type SiteResult struct {
	Site     string
	Path     string
	Fetched  int
	Retained int
	Undated  int
}

type SiteFailure struct {
	Site string
	Err  error
}

// Report is the outcome of a run. It is returned, possibly partial, even
// when Run fails.
type Report struct {
	RunID         string
	Dir           string
	Boundary      time.Time
	LocationsPath string
	Locations     []models.Location
	Sites         []SiteResult
	Failures      []SiteFailure
	Combined      []models.CountRecord
	CombinedPath  string
}

func (r *Report) FailedSites() []string {
	sites := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		sites[i] = f.Site
	}
	return sites
}

type siteOutcome struct {
	result SiteResult
	rows   []models.CountRecord
	err    error
}

// Run executes the export. The run date and the completed-month boundary
// are fixed once, at the start.
func (e *Exporter) Run(ctx context.Context) (*Report, error) {
	now := e.now()
	runDir := export.NewRunDir(e.opts.OutputRoot, now)
	report := &Report{
		RunID:    uuid.NewString(),
		Dir:      runDir.Path(),
		Boundary: models.MonthStart(now),
	}
	log := e.logger.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"step":   string(e.opts.Step),
	})

	e.tokens.Reset()
	token, err := e.tokens.Token(ctx)
	if err != nil {
		return report, err
	}

	locations, err := e.fetcher.FetchSites(ctx, token)
	if err != nil {
		return report, err
	}
	report.Locations = locations
	log.WithField("locations", len(locations)).Info("Fetched location registry")

	if _, err := runDir.Ensure(); err != nil {
		return report, err
	}

	report.LocationsPath = runDir.LocationsPath()
	if _, err := export.WriteLocations(report.LocationsPath, locations); err != nil {
		return report, fmt.Errorf("writing locations: %w", err)
	}

	outcomes := make([]siteOutcome, len(locations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, loc := range locations {
		i, site := i, loc.Site()
		g.Go(func() error {
			outcomes[i] = e.exportSite(gctx, log, runDir, report.Boundary, site)
			if err := outcomes[i].err; err != nil && (e.opts.FailFast || isFatal(err)) {
				return err
			}
			return nil
		})
	}
	waitErr := g.Wait()

	for _, out := range outcomes {
		switch {
		case out.err != nil:
			report.Failures = append(report.Failures, SiteFailure{Site: out.result.Site, Err: out.err})
		case out.result.Path != "":
			report.Sites = append(report.Sites, out.result)
			report.Combined = append(report.Combined, out.rows...)
		}
	}
	if waitErr != nil {
		return report, waitErr
	}

	if e.opts.Combined {
		report.CombinedPath = runDir.CombinedPath()
		if _, err := export.WriteCounts(report.CombinedPath, report.Combined); err != nil {
			return report, fmt.Errorf("writing combined counts: %w", err)
		}
	}

	if len(report.Failures) > 0 {
		log.WithFields(logrus.Fields{
			"failed_sites": report.FailedSites(),
			"exported":     len(report.Sites),
		}).Error("Export finished with site failures")
		return report, fmt.Errorf("%w: %d of %d", ErrSitesFailed, len(report.Failures), len(locations))
	}

	e.metrics.LastSuccess.SetToCurrentTime()
	log.WithFields(logrus.Fields{
		"dir":   report.Dir,
		"sites": len(report.Sites),
		"rows":  len(report.Combined),
	}).Info("Done.")
	return report, nil
}

func (e *Exporter) exportSite(ctx context.Context, log logrus.FieldLogger, runDir export.RunDir, boundary time.Time, site string) siteOutcome {
	out := siteOutcome{result: SiteResult{Site: site}}
	if out.err = ctx.Err(); out.err != nil {
		return out
	}

	log = log.WithField("site", site)
	log.Info("loading data for location")

	out.err = func() error {
		token, err := e.tokens.Token(ctx)
		if err != nil {
			return err
		}

		rows, err := e.fetcher.FetchCounts(ctx, token, site, e.opts.Step)
		if err != nil {
			return err
		}

		kept, undated := models.FilterCompleted(rows, boundary)
		if undated > 0 {
			log.WithField("rows", undated).Warn("Dropped count rows without a parsable date")
		}
		e.metrics.Rows.WithLabelValues("retained").Add(float64(len(kept)))
		e.metrics.Rows.WithLabelValues("incomplete_month").Add(float64(len(rows) - len(kept) - undated))
		e.metrics.Rows.WithLabelValues("undated").Add(float64(undated))

		path := runDir.SiteCountsPath(site)
		if _, err := export.WriteCounts(path, kept); err != nil {
			return fmt.Errorf("site %s: %w", site, err)
		}
		if e.sink != nil {
			if err := e.sink.BatchInsertCounts(ctx, e.opts.Step, kept); err != nil {
				// a failed site publishes nothing
				if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
					log.WithError(rmErr).Warn("Failed to remove site file")
				}
				return fmt.Errorf("site %s: storing counts: %w", site, err)
			}
		}

		out.rows = kept
		out.result = SiteResult{
			Site:     site,
			Path:     path,
			Fetched:  len(rows),
			Retained: len(kept),
			Undated:  undated,
		}
		return nil
	}()

	if out.err != nil {
		e.metrics.SitesFailed.Inc()
		log.WithError(out.err).Error("Failed to export location")
		return out
	}
	e.metrics.SitesExported.Inc()
	return out
}

// isFatal reports errors that end the run even when site failures are
// isolated: a rejected token or a cancelled run.
func isFatal(err error) bool {
	return errors.Is(err, api.ErrAuth) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
