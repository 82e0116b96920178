// Package backend is the REST client for the DermAssist service: auth, user
// profile, scan history and the /predict classifier endpoint.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"dermassist/client/internal/models"
)

const requestIDHeader = "X-Request-Id"

const defaultMaxResponseBytes = 4 << 20

var (
	ErrMissingToken     = errors.New("backend did not return an access token")
	ErrResponseTooLarge = errors.New("backend response too large")
)

// Options configures a Client.
type Options struct {
	// BaseURL is the service root, e.g. http://localhost:8000.
	BaseURL string

	// Timeout bounds every request. Zero means no timeout.
	Timeout time.Duration

	// MaxRPS caps outgoing requests per second (0 = unlimited).
	MaxRPS float64

	// HTTPClient overrides the underlying client; Timeout is ignored then.
	HTTPClient *http.Client

	// MaxResponseBytes caps a response body (default 4 MiB).
	MaxResponseBytes int64
}

type Client struct {
	baseURL     string
	http        *http.Client
	limiter     *rate.Limiter
	maxResponse int64
	log         zerolog.Logger
}

func New(opts Options, log zerolog.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		http:        httpClient,
		maxResponse: opts.MaxResponseBytes,
		log:         log,
	}
	if c.maxResponse <= 0 {
		c.maxResponse = defaultMaxResponseBytes
	}
	if opts.MaxRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}
	return c
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register creates an account and returns the issued bearer token.
func (c *Client) Register(ctx context.Context, input models.RegisterInput) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encode register request: %w", err)
	}

	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", "application/json", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", ErrMissingToken
	}
	return resp.AccessToken, nil
}

// Login exchanges credentials for a bearer token. The backend expects an
// OAuth2 password form, so the body is form-encoded.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", ErrMissingToken
	}
	return resp.AccessToken, nil
}

func (c *Client) Me(ctx context.Context, token string) (models.UserProfile, error) {
	var profile models.UserProfile
	if err := c.do(ctx, http.MethodGet, "/user/me", token, "", nil, &profile); err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

func (c *Client) Scans(ctx context.Context, token string) ([]models.Scan, error) {
	var scans []models.Scan
	if err := c.do(ctx, http.MethodGet, "/user/scans", token, "", nil, &scans); err != nil {
		return nil, err
	}
	if scans == nil {
		scans = []models.Scan{}
	}
	return scans, nil
}

// ForgotPassword asks the backend to mail a reset link. The backend answers
// 200 whether or not the address is registered.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("encode forgot-password request: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", "", "application/json", bytes.NewReader(body), nil)
}

func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	body, err := json.Marshal(map[string]string{
		"token":        resetToken,
		"new_password": newPassword,
	})
	if err != nil {
		return fmt.Errorf("encode reset-password request: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/auth/reset-password", "", "application/json", bytes.NewReader(body), nil)
}

// Predict submits an image to the classifier. The bearer token is optional;
// when present the backend files the scan under the user's history.
func (c *Client) Predict(ctx context.Context, token string, image *models.CapturedImage) (models.Prediction, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := image.Filename
	if filename == "" {
		filename = "capture.jpg"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", image.ContentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return models.Prediction{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return models.Prediction{}, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return models.Prediction{}, fmt.Errorf("close multipart: %w", err)
	}

	var prediction models.Prediction
	if err := c.do(ctx, http.MethodPost, "/predict", token, writer.FormDataContentType(), &buf, &prediction); err != nil {
		return models.Prediction{}, err
	}
	return prediction, nil
}

func (c *Client) do(ctx context.Context, method, path, token, contentType string, body io.Reader, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if int64(len(raw)) > c.maxResponse {
		return fmt.Errorf("%s %s: %w", method, path, ErrResponseTooLarge)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", requestID).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
