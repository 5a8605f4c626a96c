// Package bosh enumerates certificates embedded in deployment manifests
// held by a BOSH director.
package bosh

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	directorPort   = 25555
	defaultTimeout = 30 * time.Second

	// uaaClientID is the public client UAA ships for CLI password grants.
	uaaClientID = "bosh_cli"
)

// Director is a client for the BOSH director API. Basic auth and UAA
// password grants are supported.
type Director struct {
	httpClient *http.Client
	baseURL    string
	port       int
	username   string
	password   string
	caCertPath string

	// auth state, resolved on first request
	token     string
	basicAuth bool
}

// NewDirector creates a client for the director at hostname. The
// director's authentication scheme is discovered on first use.
func NewDirector(hostname, username, password string, opts ...func(*Director)) (*Director, error) {
	d := &Director{
		httpClient: &http.Client{Timeout: defaultTimeout},
		port:       directorPort,
		username:   username,
		password:   password,
	}
	for _, o := range opts {
		o(d)
	}
	if d.baseURL == "" {
		d.baseURL = fmt.Sprintf("https://%s:%d", hostname, d.port)
	}

	if d.caCertPath != "" {
		pemData, err := os.ReadFile(d.caCertPath)
		if err != nil {
			return nil, fmt.Errorf("reading CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, fmt.Errorf("no usable certificates in %s", d.caCertPath)
		}
		d.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		}
	}

	return d, nil
}

// WithCACert trusts the PEM certificates in path when verifying the
// director and UAA.
func WithCACert(path string) func(*Director) {
	return func(d *Director) { d.caCertPath = path }
}

// WithPort overrides the director API port.
func WithPort(port int) func(*Director) {
	return func(d *Director) { d.port = port }
}

// WithBaseURL overrides the director URL (for testing).
func WithBaseURL(u string) func(*Director) {
	return func(d *Director) { d.baseURL = u }
}

// Deployment is one deployment known to the director.
type Deployment struct {
	Name string `json:"name"`
}

// Deployments lists the deployments on the director.
func (d *Director) Deployments(ctx context.Context) ([]Deployment, error) {
	var deployments []Deployment
	if err := d.get(ctx, "/deployments", &deployments); err != nil {
		return nil, err
	}
	return deployments, nil
}

// Manifest fetches and parses the manifest of the named deployment. A
// deployment without a manifest parses to nil.
func (d *Director) Manifest(ctx context.Context, name string) (any, error) {
	var payload struct {
		Manifest string `json:"manifest"`
	}
	if err := d.get(ctx, "/deployments/"+name, &payload); err != nil {
		return nil, err
	}

	var doc any
	if err := yaml.Unmarshal([]byte(payload.Manifest), &doc); err != nil {
		return nil, fmt.Errorf("parsing manifest for %s: %w", name, err)
	}
	return doc, nil
}

// get performs an authenticated GET against the director and decodes the
// JSON response into out.
func (d *Director) get(ctx context.Context, path string, out any) error {
	if err := d.ensureAuth(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if d.token != "" {
		req.Header.Set("Authorization", "bearer "+d.token)
	} else if d.basicAuth {
		req.SetBasicAuth(d.username, d.password)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("director returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// ensureAuth asks the director how to authenticate and performs a UAA
// password grant when needed. Resolved once per client.
func (d *Director) ensureAuth(ctx context.Context) error {
	if d.token != "" || d.basicAuth {
		return nil
	}

	info, err := d.info(ctx)
	if err != nil {
		return err
	}

	switch info.UserAuthentication.Type {
	case "uaa":
		token, err := d.passwordGrant(ctx, info.UserAuthentication.Options.URL)
		if err != nil {
			return err
		}
		d.token = token
	case "basic":
		d.basicAuth = true
	default:
		return fmt.Errorf("unknown authentication type: %q", info.UserAuthentication.Type)
	}
	return nil
}

// directorInfo is the unauthenticated /info response.
type directorInfo struct {
	UserAuthentication struct {
		Type    string `json:"type"`
		Options struct {
			URL string `json:"url"`
		} `json:"options"`
	} `json:"user_authentication"`
}

func (d *Director) info(ctx context.Context) (directorInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/info", http.NoBody)
	if err != nil {
		return directorInfo{}, fmt.Errorf("building info request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return directorInfo{}, fmt.Errorf("requesting director info: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only

	if resp.StatusCode != http.StatusOK {
		return directorInfo{}, fmt.Errorf("director info returned status %d", resp.StatusCode)
	}

	var info directorInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return directorInfo{}, fmt.Errorf("decoding director info: %w", err)
	}
	return info, nil
}

// passwordGrant exchanges the configured credentials for a UAA access
// token using the public CLI client.
func (d *Director) passwordGrant(ctx context.Context, uaaURL string) (string, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {d.username},
		"password":   {d.password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uaaURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(uaaClientID, "")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting UAA token: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("UAA token request returned status %d", resp.StatusCode)
	}

	var grant struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return "", fmt.Errorf("decoding UAA token: %w", err)
	}
	return grant.AccessToken, nil
}
