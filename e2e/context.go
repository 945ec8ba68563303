// Package e2e drives a running doctrack server through Gherkin scenarios.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext carries one scenario's state between steps.
type TestContext struct {
	BaseURL    string
	SigningKey []byte
	Issuer     string
	Audience   string
	HTTPClient *http.Client

	// Token is the bearer for the acting department.
	Token        string
	LastResponse *http.Response
	LastBody     []byte
	// Documents maps scenario aliases to public document ids.
	Documents map[string]string
}

// NewTestContext reads the target server from the environment.
func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:    envOr("DOCTRACK_E2E_URL", "http://localhost:8080"),
		SigningKey: []byte(envOr("DOCTRACK_JWT_SIGNING_KEY", "dev-secret-key-change-in-production")),
		Issuer:     envOr("DOCTRACK_JWT_ISSUER", "doctrack"),
		Audience:   envOr("DOCTRACK_JWT_AUDIENCE", "doctrack-api"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Documents:  make(map[string]string),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ActAs mints a short-lived token with the same claims the server issues.
func (tc *TestContext) ActAs(name, department, role string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"name":       name,
		"department": department,
		"role":       role,
		"sub":        name,
		"iss":        tc.Issuer,
		"aud":        []string{tc.Audience},
		"iat":        now.Unix(),
		"exp":        now.Add(10 * time.Minute).Unix(),
	})
	signed, err := token.SignedString(tc.SigningKey)
	if err != nil {
		return err
	}
	tc.Token = signed
	return nil
}

// Do sends a request and buffers the response body.
func (tc *TestContext) Do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, strings.TrimRight(tc.BaseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.Token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.Token)
	}
	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.LastBody, err = io.ReadAll(resp.Body)
	tc.LastResponse = resp
	return err
}

// Decode unmarshals the last response body.
func (tc *TestContext) Decode(v any) error {
	if err := json.Unmarshal(tc.LastBody, v); err != nil {
		return fmt.Errorf("decode %s: %w", tc.LastBody, err)
	}
	return nil
}
