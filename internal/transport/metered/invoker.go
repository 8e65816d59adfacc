// Package metered performs the paywalled call itself: the resolved endpoint
// is hit with the grant's bearer token attached. The invoker never learns
// the credit cost; cost is inferred ledger-side via balance deltas.
package metered

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/metergate/internal/domain"
	"github.com/kailas-cloud/metergate/internal/metrics"
)

const defaultRequestTimeout = 60 * time.Second

// Invoker calls a metered endpoint with an access grant.
type Invoker struct {
	hc     *http.Client
	logger *zap.Logger
}

// Config holds invoker settings.
type Config struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewInvoker creates a metered invoker.
func NewInvoker(cfg Config) *Invoker {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{hc: hc, logger: logger}
}

// Invoke performs the metered call. The response payload is opaque; it is
// captured for the caller's diagnostics only.
func (iv *Invoker) Invoke(
	ctx context.Context, grant domain.AccessGrant, params map[string]string,
) (domain.InvocationResult, error) {
	u, err := buildURL(grant.InvocationURI, params)
	if err != nil {
		return domain.InvocationResult{}, fmt.Errorf("invoke: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.InvocationResult{}, fmt.Errorf("invoke: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+grant.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := iv.hc.Do(req)
	if err != nil {
		metrics.InvocationsTotal.WithLabelValues("error").Inc()
		return domain.InvocationResult{}, fmt.Errorf("invoke: %w: %w", domain.ErrInvocationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.InvocationsTotal.WithLabelValues("error").Inc()
		return domain.InvocationResult{}, fmt.Errorf("invoke: read body: %w: %w", domain.ErrInvocationFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.InvocationsTotal.WithLabelValues("error").Inc()
		return domain.InvocationResult{}, fmt.Errorf("invoke: %w", domain.NewInvocationError(resp.StatusCode, body))
	}

	metrics.InvocationsTotal.WithLabelValues("success").Inc()
	iv.logger.Debug("Metered call completed",
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(body)),
	)
	return domain.InvocationResult{StatusCode: resp.StatusCode, Body: body}, nil
}

// buildURL encodes request parameters as form-style query parameters.
// Keys are sorted so the query is deterministic.
func buildURL(base string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return base, nil
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		styled, err := runtime.StyleParamWithLocation("form", true, k, runtime.ParamLocationQuery, params[k])
		if err != nil {
			return "", fmt.Errorf("encode param %q: %w", k, err)
		}
		parts = append(parts, styled)
	}

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + strings.Join(parts, "&"), nil
}
