package storageservice

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Package is the subset of a Storage Service package record dipbatch reads.
type Package struct {
	UUID            string `json:"uuid"`
	CurrentLocation string `json:"current_location"`
	CurrentPath     string `json:"current_path"`
	PackageType     string `json:"package_type"`
	Status          string `json:"status"`
	Size            int64  `json:"size"`
}

type packagePage struct {
	Meta struct {
		Next       *string `json:"next"`
		TotalCount int     `json:"total_count"`
	} `json:"meta"`
	Objects []Package `json:"objects"`
}

// maxPages guards against a server that keeps returning the same next link.
const maxPages = 10000

// ListAIPs returns every AIP whose status is in statuses, following the
// API's pagination links.
func (c *Client) ListAIPs(ctx context.Context, statuses []string) ([]Package, error) {
	query := url.Values{}
	query.Set("package_type", "AIP")
	if len(statuses) > 0 {
		query.Set("status__in", strings.Join(statuses, ","))
	}
	next, err := c.endpoint("/api/v2/file/", query)
	if err != nil {
		return nil, fmt.Errorf("list aips: %w", err)
	}

	var packages []Package
	for page := 0; next != ""; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("list aips: more than %d pages", maxPages)
		}
		var body packagePage
		if err := c.getJSON(ctx, next, &body); err != nil {
			return nil, fmt.Errorf("list aips: %w", err)
		}
		packages = append(packages, body.Objects...)
		next = ""
		if body.Meta.Next != nil && strings.TrimSpace(*body.Meta.Next) != "" {
			if next, err = c.resolve(*body.Meta.Next); err != nil {
				return nil, fmt.Errorf("list aips: %w", err)
			}
		}
	}
	return packages, nil
}
