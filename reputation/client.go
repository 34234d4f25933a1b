package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/defenselab/pcapwatch/models"
)

const defaultBaseURL = "https://api.abuseipdb.com/api/v2"

// Client enriches flagged source IPs with AbuseIPDB reputation data and
// a reverse-DNS hostname. Every lookup fails open: collaborator
// unavailability degrades to "no enrichment" and never aborts the
// analysis that asked for it.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Resolver   string // host:port of the DNS server used for PTR lookups
	MaxAgeDays int
}

func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Resolver:   defaultResolver,
		MaxAgeDays: 90,
	}
}

// Enrich looks up every distinct source IP referenced by the alerts.
// IPs whose lookups all fail are simply absent from the result.
func (c *Client) Enrich(ctx context.Context, alerts []models.Alert) map[string]models.ReputationResult {
	results := map[string]models.ReputationResult{}
	if c == nil {
		return results
	}

	seen := map[string]struct{}{}
	for _, a := range alerts {
		ip := a.SourceIP
		if ip == "" {
			continue
		}
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}

		res := models.ReputationResult{IPAddress: ip}
		enriched := false

		if c.APIKey != "" {
			checked, err := c.Check(ctx, ip)
			if err != nil {
				log.Printf("abuseipdb lookup for %s failed, continuing without it: %v", ip, err)
			} else {
				res = checked
				enriched = true
			}
		}
		if host, err := c.reverseName(ctx, ip); err == nil && host != "" {
			res.Hostname = host
			enriched = true
		}
		if enriched {
			results[ip] = res
		}
	}
	return results
}

type checkResponse struct {
	Data struct {
		IPAddress            string `json:"ipAddress"`
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
		CountryCode          string `json:"countryCode"`
		ISP                  string `json:"isp"`
		TotalReports         int    `json:"totalReports"`
	} `json:"data"`
}

// Check queries the AbuseIPDB check endpoint for a single IP.
func (c *Client) Check(ctx context.Context, ip string) (models.ReputationResult, error) {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	q := url.Values{}
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", strconv.Itoa(c.MaxAgeDays))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/check?"+q.Encode(), nil)
	if err != nil {
		return models.ReputationResult{}, err
	}
	req.Header.Set("Key", c.APIKey)
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return models.ReputationResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.ReputationResult{}, fmt.Errorf("abuseipdb returned status %d", resp.StatusCode)
	}

	var body checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.ReputationResult{}, err
	}
	return models.ReputationResult{
		IPAddress:            body.Data.IPAddress,
		AbuseConfidenceScore: body.Data.AbuseConfidenceScore,
		CountryCode:          body.Data.CountryCode,
		ISP:                  body.Data.ISP,
		TotalReports:         body.Data.TotalReports,
	}, nil
}
