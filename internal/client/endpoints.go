package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/optima-study/optima/internal/domain/material"
)

type User struct {
	ID        int64              `json:"id" yaml:"id"`
	Username  string             `json:"username" yaml:"username"`
	Email     string             `json:"email" yaml:"email"`
	IsActive  bool               `json:"is_active" yaml:"is_active"`
	CreatedAt material.Timestamp `json:"created_at" yaml:"created_at"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the token when the backend uses header auth.
// AccessToken is empty for cookie-only deployments.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Health struct {
	Status  string `json:"status"`
	Storage *struct {
		Configured bool   `json:"configured"`
		Service    string `json:"service"`
	} `json:"storage,omitempty"`
}

// FileUpload is a document sent as multipart form data.
type FileUpload struct {
	Title       string
	FileName    string
	ContentType string // "application/pdf" or "text/plain"
	Body        io.Reader
}

type TextUpload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ============================================================================
// Auth
// ============================================================================

func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResponse, error) {
	var out LoginResponse
	r, err := jsonRequest(http.MethodPost, "/auth/login", creds)
	if err != nil {
		return out, err
	}
	err = c.do(ctx, r, &out)
	return out, err
}

// Register creates an account. It never sends the stored token and does not
// log the new user in.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	r, err := jsonRequest(http.MethodPost, "/auth/register", reg)
	if err != nil {
		return err
	}
	r.anonymous = true
	r.httpClient = c.register
	return c.do(ctx, r, nil)
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &u)
	return u, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/logout"}, nil)
}

// ============================================================================
// Materials
// ============================================================================

func (c *Client) History(ctx context.Context) ([]material.Record, error) {
	var records []material.Record
	err := c.do(ctx, request{method: http.MethodGet, path: "/materials/get-history"}, &records)
	return records, err
}

func (c *Client) Material(ctx context.Context, id int64) (material.Record, error) {
	var rec material.Record
	err := c.do(ctx, request{method: http.MethodGet, path: materialPath(id)}, &rec)
	return rec, err
}

func (c *Client) DeleteMaterial(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: materialPath(id)}, nil)
}

// DownloadURL returns a (possibly presigned) link to the stored PDF.
func (c *Client) DownloadURL(ctx context.Context, id int64) (string, error) {
	var out struct {
		DownloadURL string `json:"download_url"`
	}
	err := c.do(ctx, request{method: http.MethodGet, path: "/materials/download/" + strconv.FormatInt(id, 10)}, &out)
	return out.DownloadURL, err
}

// FetchFile streams an absolute URL (such as a download link) into w. No
// bearer token is sent: the link is usually presigned storage.
func (c *Client) FetchFile(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.upload.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, c.fail(ctx, &APIError{Kind: kindForTransport(err), Method: http.MethodGet, Path: rawURL, Wrapped: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// A storage 401 is not a session failure.
		kind := kindForStatus(resp.StatusCode)
		if kind == KindUnauthorized {
			kind = KindForbidden
		}
		return 0, c.fail(ctx, &APIError{Kind: kind, Status: resp.StatusCode, Method: http.MethodGet, Path: rawURL})
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	return n, nil
}

// UploadFile sends a document with the long upload timeout. The title travels
// as a query parameter, the file as the "file" form field.
func (c *Client) UploadFile(ctx context.Context, up FileUpload) (material.Material, error) {
	var m material.Material

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, up.FileName))
	header.Set("Content-Type", up.ContentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return m, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return m, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return m, fmt.Errorf("failed to finish form: %w", err)
	}

	r := request{
		method:      http.MethodPost,
		path:        "/materials/upload-material",
		query:       url.Values{"title": {up.Title}},
		body:        &buf,
		contentType: mw.FormDataContentType(),
		httpClient:  c.upload,
	}
	err = c.do(ctx, r, &m)
	return m, err
}

func (c *Client) UploadText(ctx context.Context, up TextUpload) (material.Material, error) {
	var m material.Material
	r, err := jsonRequest(http.MethodPost, "/materials/upload-text", up)
	if err != nil {
		return m, err
	}
	r.httpClient = c.upload
	err = c.do(ctx, r, &m)
	return m, err
}

func materialPath(id int64) string {
	return "/materials/" + strconv.FormatInt(id, 10)
}

// ============================================================================
// Generation
// ============================================================================

// GenerateSummary asks the backend to (re)generate the summary. The result
// carries only the summary field.
func (c *Client) GenerateSummary(ctx context.Context, id int64) (*material.GeneratedData, error) {
	return c.generate(ctx, "/llm/generate-summary/", id)
}

func (c *Client) GenerateQuiz(ctx context.Context, id int64) (*material.GeneratedData, error) {
	return c.generate(ctx, "/llm/generate-quiz/", id)
}

func (c *Client) ExtractConcepts(ctx context.Context, id int64) (*material.GeneratedData, error) {
	return c.generate(ctx, "/llm/extract-concepts/", id)
}

// The generate endpoints answer with a single field of GeneratedData, with
// arrays in native form; GeneratedData's decoder handles both shapes.
func (c *Client) generate(ctx context.Context, prefix string, id int64) (*material.GeneratedData, error) {
	var g material.GeneratedData
	if err := c.do(ctx, request{method: http.MethodPost, path: prefix + strconv.FormatInt(id, 10)}, &g); err != nil {
		return nil, err
	}
	g.MaterialID = id
	return &g, nil
}

// ============================================================================
// Health
// ============================================================================

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, request{method: http.MethodGet, path: "/health", anonymous: true}, &h)
	return h, err
}
