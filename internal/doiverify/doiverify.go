// Package doiverify checks citation DOIs against the CrossRef registry and
// extracts bibliographic metadata. Verification is best effort: a registry
// outage degrades to an unverified citation, never a failed submission.
package doiverify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LahousseBram/CureSwarm/config"
	"github.com/LahousseBram/CureSwarm/internal/metrics"
)

// doiPattern matches the registered DOI syntax, with an optional doi: prefix.
var doiPattern = regexp.MustCompile(`(?i)^(doi:)?10\.\d{4,}/[-._;()/:a-zA-Z0-9]+$`)

// Metadata is the bibliographic record extracted from CrossRef.
type Metadata struct {
	Title     string `json:"title,omitempty"`
	Authors   string `json:"authors,omitempty"`
	Journal   string `json:"journal,omitempty"`
	Year      int    `json:"year,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Type      string `json:"type,omitempty"`
	URL       string `json:"url,omitempty"`
	Abstract  string `json:"abstract,omitempty"`
	ISSN      string `json:"issn,omitempty"`
	Volume    string `json:"volume,omitempty"`
	Issue     string `json:"issue,omitempty"`
	Page      string `json:"page,omitempty"`
}

// Result is the outcome of one verification attempt. Reason is set when the
// DOI could not be verified.
type Result struct {
	Verified bool      `json:"verified"`
	DOI      string    `json:"doi"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// Client queries the CrossRef works API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	collector  *metrics.Collector
	logger     *zap.Logger
}

// NewClient creates a Client from the verify config. collector may be nil.
func NewClient(cfg config.VerifyConfig, collector *metrics.Collector, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  fmt.Sprintf("CureSwarm/1.0 (https://cureswarm.org; mailto:%s)", cfg.MailTo),
		collector:  collector,
		logger:     logger.With(zap.String("component", "doiverify")),
	}
}

// IsValidFormat reports whether the string looks like a DOI.
func IsValidFormat(doi string) bool {
	return doiPattern.MatchString(strings.TrimSpace(doi))
}

// Normalize trims whitespace and strips an optional doi: prefix.
func Normalize(doi string) string {
	doi = strings.TrimSpace(doi)
	if len(doi) >= 4 && strings.EqualFold(doi[:4], "doi:") {
		doi = doi[4:]
	}
	return doi
}

// crossrefWork mirrors the subset of the CrossRef message we consume.
type crossrefWork struct {
	Message struct {
		Title  []string `json:"title"`
		Author []struct {
			Given  string `json:"given"`
			Family string `json:"family"`
		} `json:"author"`
		ContainerTitle  []string      `json:"container-title"`
		Published       crossrefDate  `json:"published"`
		PublishedOnline crossrefDate  `json:"published-online"`
		PublishedPrint  crossrefDate  `json:"published-print"`
		Created         crossrefDate  `json:"created"`
		Publisher       string        `json:"publisher"`
		Type            string        `json:"type"`
		URL             string        `json:"URL"`
		Abstract        string        `json:"abstract"`
		ISSN            []string      `json:"ISSN"`
		Volume          string        `json:"volume"`
		Issue           string        `json:"issue"`
		Page            string        `json:"page"`
	} `json:"message"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

func (d crossrefDate) year() int {
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 {
		return d.DateParts[0][0]
	}
	return 0
}

// Verify checks one DOI against the registry. All verification failures are
// reported through Result.Reason; an error is returned only for malformed
// client state.
func (c *Client) Verify(ctx context.Context, doi string) (*Result, error) {
	start := time.Now()
	result, err := c.verify(ctx, doi)
	if c.collector != nil && result != nil {
		outcome := "verified"
		if !result.Verified {
			outcome = reasonLabel(result.Reason)
		}
		c.collector.RecordDOIVerification(outcome, time.Since(start))
	}
	return result, err
}

func (c *Client) verify(ctx context.Context, raw string) (*Result, error) {
	doi := Normalize(raw)
	if !IsValidFormat(doi) {
		return &Result{DOI: doi, Reason: "Invalid DOI format"}, nil
	}

	endpoint := c.baseURL + "/" + url.PathEscape(doi)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		reason := "Network error during verification"
		if isTimeout(err) {
			reason = "Verification timeout - please try again"
		}
		c.logger.Warn("doi verification request failed", zap.String("doi", doi), zap.Error(err))
		return &Result{DOI: doi, Reason: reason}, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &Result{DOI: doi, Reason: "DOI not found"}, nil
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("doi verification unexpected status",
			zap.String("doi", doi), zap.Int("status", resp.StatusCode))
		return &Result{DOI: doi, Reason: fmt.Sprintf("Verification service returned status %d", resp.StatusCode)}, nil
	}

	var work crossrefWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		c.logger.Warn("doi verification decode failed", zap.String("doi", doi), zap.Error(err))
		return &Result{DOI: doi, Reason: "Network error during verification"}, nil
	}

	return &Result{
		Verified: true,
		DOI:      doi,
		Metadata: extractMetadata(doi, work),
	}, nil
}

func extractMetadata(doi string, work crossrefWork) *Metadata {
	m := work.Message

	meta := &Metadata{
		Publisher: m.Publisher,
		Type:      m.Type,
		URL:       m.URL,
		Abstract:  m.Abstract,
		Volume:    m.Volume,
		Issue:     m.Issue,
		Page:      m.Page,
	}
	if len(m.Title) > 0 {
		meta.Title = m.Title[0]
	}
	if len(m.ContainerTitle) > 0 {
		meta.Journal = m.ContainerTitle[0]
	}
	if len(m.ISSN) > 0 {
		meta.ISSN = m.ISSN[0]
	}
	if meta.URL == "" {
		meta.URL = "https://doi.org/" + doi
	}

	authors := make([]string, 0, len(m.Author))
	for _, a := range m.Author {
		if len(authors) == 10 {
			break
		}
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name != "" {
			authors = append(authors, name)
		}
	}
	meta.Authors = strings.Join(authors, ", ")

	// earliest usable publication date wins; created is the fallback
	maxYear := time.Now().Year() + 1
	for _, d := range []crossrefDate{m.Published, m.PublishedOnline, m.PublishedPrint, m.Created} {
		if y := d.year(); y > 1900 && y <= maxYear {
			meta.Year = y
			break
		}
	}

	return meta
}

// Probe checks that the registry endpoint is reachable. Used by the
// readiness handler; any HTTP response counts as reachable.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("build registry probe: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("citation registry unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var uerr *url.Error
	return errors.As(err, &uerr) && uerr.Timeout()
}

func reasonLabel(reason string) string {
	switch {
	case strings.Contains(reason, "format"):
		return "invalid_format"
	case strings.Contains(reason, "not found"):
		return "not_found"
	case strings.Contains(reason, "timeout"):
		return "timeout"
	default:
		return "error"
	}
}
