package storageservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"dipbatch/internal/asyncjob"
)

// PackageRequest is the registration body for POST /api/v2/file/async/.
type PackageRequest struct {
	UUID               string `json:"uuid"`
	OriginPipeline     string `json:"origin_pipeline"`
	OriginLocation     string `json:"origin_location"`
	OriginPath         string `json:"origin_path"`
	CurrentLocation    string `json:"current_location"`
	CurrentPath        string `json:"current_path"`
	PackageType        string `json:"package_type"`
	AIPSubtype         string `json:"aip_subtype"`
	Size               int64  `json:"size"`
	RelatedPackageUUID string `json:"related_package_uuid"`
	Events             []any  `json:"events"`
	Agents             []any  `json:"agents"`
}

// SubmitPackage registers a package asynchronously and returns the job URL
// from the Location header. A response other than 202, or one without a
// Location, is a *StatusError wrapping ErrUnexpectedStatus; transport faults
// are returned wrapped but otherwise untouched.
func (c *Client) SubmitPackage(ctx context.Context, pkg PackageRequest) (string, error) {
	if pkg.Events == nil {
		pkg.Events = []any{}
	}
	if pkg.Agents == nil {
		pkg.Agents = []any{}
	}
	payload, err := json.Marshal(pkg)
	if err != nil {
		return "", fmt.Errorf("encode package request: %w", err)
	}
	target, err := c.endpoint("/api/v2/file/async/", nil)
	if err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST %s: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", statusError(req, resp)
	}
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return "", &StatusError{Method: req.Method, URL: req.URL.Redacted(), StatusCode: resp.StatusCode, Body: "missing Location header"}
	}
	return c.resolve(location)
}

// JobStatus reads an async job resource.
func (c *Client) JobStatus(ctx context.Context, jobURL string) (asyncjob.Status, error) {
	target, err := c.resolve(jobURL)
	if err != nil {
		return asyncjob.Status{}, err
	}
	var status asyncjob.Status
	if err := c.getJSON(ctx, target, &status); err != nil {
		return asyncjob.Status{}, err
	}
	return status, nil
}
