package mast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"keplerhub/pkg/models"
)

const (
	DefaultBaseURL = "https://mast.stsci.edu"
	// DefaultRadiusArcsec is the cone search radius around the resolved position.
	DefaultRadiusArcsec = 2.0

	invokePath   = "/api/v0/invoke"
	downloadPath = "/api/v0.1/Download/file"

	// long cadence light curve products
	productGroupLLC = "LLC"
)

// Client talks to the MAST portal API and implements lightcurve.Archive.
type Client struct {
	BaseURL      string
	Client       *http.Client
	RadiusArcsec float64
	// Decode turns a downloaded product into a series; defaults to DecodeFITS.
	Decode func(io.Reader) (*models.LightCurve, error)
	Logger zerolog.Logger
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Client:       &http.Client{Timeout: 90 * time.Second},
		RadiusArcsec: DefaultRadiusArcsec,
		Decode:       DecodeFITS,
		Logger:       zerolog.Nop(),
	}
}

type invokeRequest struct {
	Service  string `json:"service"`
	Format   string `json:"format"`
	PageSize int    `json:"pagesize,omitempty"`
	Params   any    `json:"params"`
}

type filter struct {
	ParamName string   `json:"paramName"`
	Values    []string `json:"values"`
}

type lookupResponse struct {
	ResolvedCoordinate []struct {
		CanonicalName string  `json:"canonicalName"`
		RA            float64 `json:"ra"`
		Decl          float64 `json:"decl"`
	} `json:"resolvedCoordinate"`
}

type observationsResponse struct {
	Data []struct {
		ObsID      flexString `json:"obsid"`
		TargetName string     `json:"target_name"`
		Collection string     `json:"obs_collection"`
	} `json:"data"`
}

type productsResponse struct {
	Data []struct {
		ObsID       flexString `json:"obsID"`
		SubGroup    string     `json:"productSubGroupDescription"`
		DataURI     string     `json:"dataURI"`
		Filename    string     `json:"productFilename"`
		Description string     `json:"description"`
		ProductType string     `json:"productType"`
	} `json:"data"`
}

// flexString accepts both JSON strings and numbers; MAST is not consistent
// about obsid.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Search returns the long-cadence light curve products for target, oldest
// first. An unknown name or an empty cone yields an empty slice.
func (c *Client) Search(ctx context.Context, target, mission string) ([]models.DataProduct, error) {
	var lookup lookupResponse
	if err := c.invoke(ctx, invokeRequest{
		Service: "Mast.Name.Lookup",
		Format:  "json",
		Params:  map[string]string{"input": target, "format": "json"},
	}, &lookup); err != nil {
		return nil, fmt.Errorf("mast: name lookup %q: %w", target, err)
	}
	if len(lookup.ResolvedCoordinate) == 0 {
		c.Logger.Debug().Str("target", target).Msg("name not resolved")
		return nil, nil
	}
	coord := lookup.ResolvedCoordinate[0]

	var obs observationsResponse
	if err := c.invoke(ctx, invokeRequest{
		Service:  "Mast.Caom.Filtered.Position",
		Format:   "json",
		PageSize: 500,
		Params: map[string]any{
			"columns": "*",
			"filters": []filter{
				{ParamName: "obs_collection", Values: []string{mission}},
				{ParamName: "dataproduct_type", Values: []string{"timeseries"}},
			},
			"position": fmt.Sprintf("%f, %f, %f", coord.RA, coord.Decl, c.RadiusArcsec/3600),
		},
	}, &obs); err != nil {
		return nil, fmt.Errorf("mast: observations for %q: %w", target, err)
	}

	ids := make([]string, 0, len(obs.Data))
	names := make(map[string]string, len(obs.Data))
	for _, o := range obs.Data {
		if o.ObsID == "" {
			continue
		}
		ids = append(ids, string(o.ObsID))
		names[string(o.ObsID)] = o.TargetName
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var prods productsResponse
	if err := c.invoke(ctx, invokeRequest{
		Service: "Mast.Caom.Products",
		Format:  "json",
		Params:  map[string]string{"obsid": strings.Join(ids, ",")},
	}, &prods); err != nil {
		return nil, fmt.Errorf("mast: products for %q: %w", target, err)
	}

	var out []models.DataProduct
	for _, p := range prods.Data {
		if !strings.EqualFold(p.SubGroup, productGroupLLC) || p.DataURI == "" {
			continue
		}
		out = append(out, models.DataProduct{
			ObsID:       string(p.ObsID),
			Target:      names[string(p.ObsID)],
			Mission:     mission,
			DataURI:     p.DataURI,
			Filename:    p.Filename,
			Description: p.Description,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })

	c.Logger.Debug().Str("target", target).Int("products", len(out)).Msg("search finished")
	return out, nil
}

// Download fetches one product and decodes it. A product the archive no
// longer has returns a nil series.
func (c *Client) Download(ctx context.Context, p models.DataProduct) (*models.LightCurve, error) {
	u := c.BaseURL + downloadPath + "?uri=" + url.QueryEscape(p.DataURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("mast: build request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mast: download %s: %w", p.DataURI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mast: download status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mast: read %s: %w", p.DataURI, err)
	}

	decode := c.Decode
	if decode == nil {
		decode = DecodeFITS
	}
	lc, err := decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mast: decode %s: %w", p.Filename, err)
	}
	if lc != nil {
		lc.Mission = p.Mission
	}
	return lc, nil
}

func (c *Client) invoke(ctx context.Context, r invokeRequest, out any) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	form := url.Values{"request": {string(payload)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+invokePath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 512))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
