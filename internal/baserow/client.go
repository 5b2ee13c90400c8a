package baserow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"aircheck/internal/services"
)

// HTTPDoer describes the HTTP client used by the store client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the tabular store's row API. Construct it once in the
// command wiring and inject it; there is no package-level instance.
type Client struct {
	baseURL string
	token   string
	client  HTTPDoer
	logger  *slog.Logger
}

// NewClient constructs a store client. A nil doer falls back to
// http.DefaultClient.
func NewClient(baseURL, token string, doer HTTPDoer, logger *slog.Logger) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  doer,
		logger:  logger,
	}
}

// Filter restricts a row listing to rows whose field matches a value.
type Filter struct {
	Field string
	Op    string
	Value string
}

// Equal builds an equality filter on a user field name.
func Equal(field, value string) Filter {
	return Filter{Field: field, Op: "equal", Value: value}
}

// GetRow fetches a single row by id and decodes it into out.
func (c *Client) GetRow(ctx context.Context, tableID, rowID int64, out any) error {
	endpoint := fmt.Sprintf("%s/api/database/rows/table/%d/%d/?user_field_names=true", c.baseURL, tableID, rowID)
	return c.doJSON(ctx, http.MethodGet, endpoint, nil, out)
}

// ListRows fetches all rows matching the filters and decodes the result list
// into out, which must be a pointer to a slice.
func (c *Client) ListRows(ctx context.Context, tableID int64, out any, filters ...Filter) error {
	values := url.Values{}
	values.Set("user_field_names", "true")
	for _, filter := range filters {
		op := filter.Op
		if op == "" {
			op = "equal"
		}
		values.Set(fmt.Sprintf("filter__%s__%s", filter.Field, op), filter.Value)
	}
	endpoint := fmt.Sprintf("%s/api/database/rows/table/%d/?%s", c.baseURL, tableID, values.Encode())

	var page struct {
		Count   int             `json:"count"`
		Results json.RawMessage `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return err
	}
	if err := json.Unmarshal(page.Results, out); err != nil {
		return fmt.Errorf("decode row list: %w", err)
	}
	return nil
}

// CreateRow inserts a row with the given fields and decodes the created row
// into out when out is non-nil.
func (c *Client) CreateRow(ctx context.Context, tableID int64, fields any, out any) error {
	endpoint := fmt.Sprintf("%s/api/database/rows/table/%d/?user_field_names=true", c.baseURL, tableID)
	return c.doJSON(ctx, http.MethodPost, endpoint, fields, out)
}

// UpdateRow patches the given fields of one row. Only the supplied columns
// are touched.
func (c *Client) UpdateRow(ctx context.Context, tableID, rowID int64, fields any) error {
	endpoint := fmt.Sprintf("%s/api/database/rows/table/%d/%d/?user_field_names=true", c.baseURL, tableID, rowID)
	return c.doJSON(ctx, http.MethodPatch, endpoint, fields, nil)
}

// UploadFile streams a local file into the store's file storage. The
// returned reference can be attached to file columns via its name.
func (c *Client) UploadFile(ctx context.Context, path string) (FileRef, error) {
	file, err := os.Open(path)
	if err != nil {
		return FileRef{}, fmt.Errorf("open upload source: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return FileRef{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return FileRef{}, fmt.Errorf("read upload source: %w", err)
	}
	if err := writer.Close(); err != nil {
		return FileRef{}, fmt.Errorf("finish multipart body: %w", err)
	}

	endpoint := c.baseURL + "/api/user-files/upload-file/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return FileRef{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var ref FileRef
	if err := c.send(req, &ref); err != nil {
		return FileRef{}, err
	}
	return ref, nil
}

// UploadViaURL asks the store to fetch a file from a URL into its storage.
func (c *Client) UploadViaURL(ctx context.Context, fileURL string) (FileRef, error) {
	endpoint := c.baseURL + "/api/user-files/upload-via-url/"
	var ref FileRef
	if err := c.doJSON(ctx, http.MethodPost, endpoint, map[string]string{"url": fileURL}, &ref); err != nil {
		return FileRef{}, err
	}
	return ref, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build store request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	c.logger.Debug("store request", slog.String("method", req.Method), slog.String("url", req.URL.Path))
	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "store", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, "store", req.Method, req.URL.Path, nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		detail := readErrorBody(resp.Body)
		return services.Wrap(services.ErrExternalService, "store", req.Method,
			fmt.Sprintf("%s returned %d: %s", req.URL.Path, resp.StatusCode, detail), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode store response: %w", err)
	}
	return nil
}

func readErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 2048))
	if err != nil {
		return "unreadable error body"
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "empty error body"
	}
	return text
}
