// Package vulnsource contains the clients for the supported vulnerability
// databases. Each client owns the adapter that maps its native severity
// representation onto the common [0,1] scale, so the aggregator never
// branches on source identity.
package vulnsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/williamzujkowski/dependency-risk-profiler/internal/retry"
)

const userAgent = "dependency-risk-profiler/1.0"

// maxResponseBytes caps how much of an upstream response is read. The
// largest real-world OSV responses are well under this.
const maxResponseBytes = 8 << 20

// SourceError is the typed failure returned by every source client.
// Transient errors (network failures, timeouts, 5xx, 429) are retried by the
// wrapper; permanent errors (other 4xx) fail the (dependency, source) pair
// immediately.
type SourceError struct {
	Source     string
	StatusCode int           // zero for non-HTTP failures
	RetryAfter time.Duration // honored for 429 responses
	Transient  bool
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// RetryClass reports whether the retry wrapper may try again.
func (e *SourceError) RetryClass() retry.Class {
	if e.Transient {
		return retry.ClassTransient
	}
	return retry.ClassPermanent
}

// RetryAfterHint surfaces a server-provided delay, if any.
func (e *SourceError) RetryAfterHint() (time.Duration, bool) {
	return e.RetryAfter, e.RetryAfter > 0
}

// newHTTPError classifies an HTTP status into a SourceError.
// 5xx and 429 are transient; every other 4xx is permanent.
func newHTTPError(source string, resp *http.Response) *SourceError {
	se := &SourceError{
		Source:     source,
		StatusCode: resp.StatusCode,
		Transient:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		Err:        fmt.Errorf("unexpected status %s", resp.Status),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		se.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return se
}

// newTransportError wraps a connection-level failure; always transient.
func newTransportError(source string, err error) *SourceError {
	return &SourceError{Source: source, Transient: true, Err: err}
}

// parseRetryAfter handles the delta-seconds form of the Retry-After header.
// The HTTP-date form is rare on the APIs involved and falls back to the
// normal backoff schedule.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// doJSON executes req and returns the response body, classifying every
// failure mode into a SourceError.
func doJSON(client *http.Client, source string, req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, newTransportError(source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(source, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, newTransportError(source, fmt.Errorf("reading response body: %w", err))
	}
	return body, nil
}

func newJSONRequest(ctx context.Context, method, url string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// -- Severity Normalization --

// UnknownSeverityScore is the explicit score for missing or unparseable
// severities. Scoring an unknown as zero would silently report a
// vulnerability of unknowable severity as harmless.
const UnknownSeverityScore = 0.5

// NormalizeCVSS maps a 0-10 CVSS base score onto [0,1], clamping
// out-of-range inputs.
func NormalizeCVSS(score float64) float64 {
	switch {
	case score <= 0:
		return 0
	case score >= 10:
		return 1
	default:
		return score / 10
	}
}

// severityTable maps textual severities onto the common scale.
var severityTable = map[string]float64{
	"none":     0.0,
	"low":      0.25,
	"medium":   0.5,
	"moderate": 0.5,
	"high":     0.75,
	"critical": 1.0,
}

// NormalizeSeverityText maps a textual severity onto [0,1]. Unrecognized or
// empty values return UnknownSeverityScore.
func NormalizeSeverityText(severity string) float64 {
	if score, ok := severityTable[strings.ToLower(strings.TrimSpace(severity))]; ok {
		return score
	}
	return UnknownSeverityScore
}

// normalizeSeverity prefers a numeric CVSS string and falls back to the
// textual table.
func normalizeSeverity(raw string) float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UnknownSeverityScore
	}
	if cvss, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return NormalizeCVSS(cvss)
	}
	return NormalizeSeverityText(trimmed)
}

// canonicalID picks the stable identifier for a record: a CVE number when
// one appears among the candidates, otherwise the first non-empty candidate.
// The remaining candidates become the alias list, sorted.
func canonicalID(primary string, aliases []string) (string, []string) {
	all := make([]string, 0, len(aliases)+1)
	if primary != "" {
		all = append(all, primary)
	}
	for _, a := range aliases {
		if a != "" && a != primary {
			all = append(all, a)
		}
	}
	if len(all) == 0 {
		return "", nil
	}

	canonical := all[0]
	for _, id := range all {
		if strings.HasPrefix(id, "CVE-") {
			canonical = id
			break
		}
	}

	rest := make([]string, 0, len(all)-1)
	for _, id := range all {
		if id != canonical {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return canonical, rest
}
