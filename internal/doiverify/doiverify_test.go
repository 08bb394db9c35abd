package doiverify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LahousseBram/CureSwarm/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.DefaultVerifyConfig()
	cfg.BaseURL = server.URL
	return NewClient(cfg, nil, zap.NewNop())
}

func TestIsValidFormat(t *testing.T) {
	tests := []struct {
		doi  string
		want bool
	}{
		{"10.1038/s41586-021-03819-2", true},
		{"doi:10.1038/s41586-021-03819-2", true},
		{"DOI:10.1128/AAC.01234-21", true},
		{"  10.1016/j.cell.2023.01.001  ", true},
		{"11.1038/nope", false},
		{"10.38/too-short-prefix", false},
		{"not a doi", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.doi, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidFormat(tt.doi))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "10.1038/x", Normalize(" doi:10.1038/x "))
	assert.Equal(t, "10.1038/x", Normalize("DOI:10.1038/x"))
	assert.Equal(t, "10.1038/x", Normalize("10.1038/x"))
}

func TestVerify_Success(t *testing.T) {
	var gotUserAgent string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"message": {
				"title": ["Global burden of bacterial antimicrobial resistance"],
				"author": [
					{"given": "Christopher", "family": "Murray"},
					{"given": "Kevin", "family": "Ikuta"}
				],
				"container-title": ["The Lancet"],
				"published": {"date-parts": [[2022, 2, 12]]},
				"publisher": "Elsevier",
				"type": "journal-article",
				"URL": "https://doi.org/10.1016/S0140-6736(21)02724-0",
				"ISSN": ["0140-6736"],
				"volume": "399",
				"issue": "10325",
				"page": "629-655"
			}
		}`))
	})

	res, err := client.Verify(context.Background(), "doi:10.1016/S0140-6736(21)02724-0")
	require.NoError(t, err)

	assert.True(t, res.Verified)
	assert.Equal(t, "10.1016/S0140-6736(21)02724-0", res.DOI)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "Global burden of bacterial antimicrobial resistance", res.Metadata.Title)
	assert.Equal(t, "Christopher Murray, Kevin Ikuta", res.Metadata.Authors)
	assert.Equal(t, "The Lancet", res.Metadata.Journal)
	assert.Equal(t, 2022, res.Metadata.Year)
	assert.Equal(t, "Elsevier", res.Metadata.Publisher)
	assert.Equal(t, "0140-6736", res.Metadata.ISSN)
	assert.Equal(t, "629-655", res.Metadata.Page)

	assert.Contains(t, gotUserAgent, "CureSwarm/1.0")
	assert.Contains(t, gotUserAgent, "mailto:")
}

func TestVerify_YearFallsBackToCreated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"message": {
				"title": ["t"],
				"published": {"date-parts": [[1850]]},
				"created": {"date-parts": [[2019, 5]]}
			}
		}`))
	})

	res, err := client.Verify(context.Background(), "10.1038/x1")
	require.NoError(t, err)
	require.True(t, res.Verified)

	// the implausible published year is skipped in favor of created
	assert.Equal(t, 2019, res.Metadata.Year)
}

func TestVerify_URLFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": {"title": ["t"]}}`))
	})

	res, err := client.Verify(context.Background(), "10.1038/x2")
	require.NoError(t, err)
	require.True(t, res.Verified)
	assert.Equal(t, "https://doi.org/10.1038/x2", res.Metadata.URL)
}

func TestVerify_AuthorListCapped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"message": {
				"title": ["t"],
				"author": [
					{"given": "A", "family": "1"}, {"given": "A", "family": "2"},
					{"given": "A", "family": "3"}, {"given": "A", "family": "4"},
					{"given": "A", "family": "5"}, {"given": "A", "family": "6"},
					{"given": "A", "family": "7"}, {"given": "A", "family": "8"},
					{"given": "A", "family": "9"}, {"given": "A", "family": "10"},
					{"given": "A", "family": "11"}, {"given": "A", "family": "12"}
				]
			}
		}`))
	})

	res, err := client.Verify(context.Background(), "10.1038/x3")
	require.NoError(t, err)
	require.True(t, res.Verified)
	assert.Len(t, strings.Split(res.Metadata.Authors, ", "), 10)
}

func TestVerify_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	res, err := client.Verify(context.Background(), "10.1038/missing")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, "DOI not found", res.Reason)
}

func TestVerify_InvalidFormat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid DOIs must not reach the registry")
	})

	res, err := client.Verify(context.Background(), "not-a-doi")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, "Invalid DOI format", res.Reason)
}

func TestVerify_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	cfg := config.DefaultVerifyConfig()
	cfg.BaseURL = server.URL
	cfg.Timeout = 20 * time.Millisecond
	client := NewClient(cfg, nil, zap.NewNop())

	res, err := client.Verify(context.Background(), "10.1038/slow")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, "Verification timeout - please try again", res.Reason)
}

func TestVerify_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	res, err := client.Verify(context.Background(), "10.1038/down")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Contains(t, res.Reason, "503")
}
