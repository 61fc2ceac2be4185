package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethgrid/pester"
	"go.uber.org/zap"
)

// PyPIClient queries the PyPI JSON API.
type PyPIClient interface {
	// VersionExists reports whether pkg==version is already published.
	VersionExists(ctx context.Context, pkg, version string) (bool, error)
}

type pypiClient struct {
	baseURL string
	client  *pester.Client
	logger  *zap.Logger
}

// NewPyPIClient creates a PyPIClient for baseURL (https://pypi.org by default).
func NewPyPIClient(baseURL string, logger *zap.Logger) PyPIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseURL == "" {
		baseURL = "https://pypi.org"
	}
	client := pester.NewExtendedClient(&http.Client{})
	client.MaxRetries = 3
	client.Backoff = pester.ExponentialJitterBackoff
	client.KeepLog = true
	client.Timeout = DefaultPyPITimeout
	return &pypiClient{baseURL: strings.TrimRight(baseURL, "/"), client: client, logger: logger}
}

func (c *pypiClient) VersionExists(ctx context.Context, pkg, version string) (bool, error) {
	if strings.TrimSpace(pkg) == "" {
		return false, fmt.Errorf("package name is required")
	}
	if err := sanitizeVersion(version); err != nil {
		return false, err
	}
	endpoint := fmt.Sprintf("%s/pypi/%s/%s/json", c.baseURL, url.PathEscape(pkg), url.PathEscape(strings.TrimPrefix(version, "v")))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create pypi request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	start := time.Now()
	response, err := c.client.Do(request)
	if err != nil {
		c.logger.Warn("pypi request failed", zap.String("url", endpoint), zap.String("pester_log", c.client.LogString()))
		return false, fmt.Errorf("failed to query pypi: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)
	c.logger.Debug("pypi probe",
		zap.String("url", endpoint),
		zap.Int("status", response.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	switch response.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected pypi response status %d for %s", response.StatusCode, endpoint)
	}
}
