package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aliceafriedman/BikeCounters/internal/models"
)

// FetchSites returns the counter registry in API order, with the excluded
// fields removed and id renamed to site.
func (c *Client) FetchSites(ctx context.Context, token models.AuthToken) ([]models.Location, error) {
	records, err := c.getRecords(ctx, endpointSites, c.opts.SitesURL, token)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(records))
	locations := make([]models.Location, 0, len(records))
	for i := range records {
		rec := &records[i]
		for _, field := range c.opts.ExcludeFields {
			rec.Delete(field)
		}
		rec.Rename("id", models.SiteField)

		loc := models.Location{Record: *rec}
		site := loc.Site()
		if site == "" {
			return nil, fmt.Errorf("%w: location %d has no id", ErrAPI, i)
		}
		if seen[site] {
			return nil, fmt.Errorf("%w: duplicate location id %s", ErrAPI, site)
		}
		seen[site] = true
		locations = append(locations, loc)
	}
	return locations, nil
}

// FetchCounts returns the raw count series of one site at the given step,
// every row tagged with the site id.
func (c *Client) FetchCounts(ctx context.Context, token models.AuthToken, site string, step models.Step) ([]models.CountRecord, error) {
	endpoint := fmt.Sprintf("%s/%s?step=%s",
		strings.TrimRight(c.opts.CountsURL, "/"),
		url.PathEscape(site),
		url.QueryEscape(string(step)))

	records, err := c.getRecords(ctx, endpointCounts, endpoint, token)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site, err)
	}

	rows := make([]models.CountRecord, len(records))
	for i := range records {
		records[i].Set(models.SiteField, site)
		rows[i] = models.CountRecord{Record: records[i], Index: i}
	}
	return rows, nil
}

func (c *Client) getRecords(ctx context.Context, endpoint, target string, token models.AuthToken) ([]models.Record, error) {
	status, body, err := c.do(ctx, endpoint, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", token.Header())
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	if !isSuccess(status) {
		return nil, fmt.Errorf("%w: %s returned %d", ErrAPI, endpoint, status)
	}
	records, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAPI, endpoint, err)
	}
	return records, nil
}
