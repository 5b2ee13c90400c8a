// Package omnia is a client for the distribution platform's REST API.
//
// Every call is keyed by a stream type and signed with an md5 token derived
// from the operation name, the domain id, and the API secret. The media API
// reads published state; the management API creates and mutates items.
package omnia

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"aircheck/internal/services"
)

const (
	headerRequestCID   = "X-Request-CID"
	headerRequestToken = "X-Request-Token"
)

// HTTPDoer describes the HTTP client used for platform calls.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the distribution platform. Construct once and inject.
type Client struct {
	baseURL   string
	domainID  string
	apiSecret string
	sessionID string
	client    HTTPDoer
	logger    *slog.Logger
}

// NewClient builds a platform client. A nil doer falls back to
// http.DefaultClient.
func NewClient(baseURL, domainID, apiSecret, sessionID string, doer HTTPDoer, logger *slog.Logger) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		domainID:  strings.TrimSpace(domainID),
		apiSecret: strings.TrimSpace(apiSecret),
		sessionID: strings.TrimSpace(sessionID),
		client:    doer,
		logger:    logger,
	}
}

// UploadOptions tune an upload-by-url call.
type UploadOptions struct {
	UseQueue    bool
	Filename    string
	RefNr       string
	AutoPublish bool
	Notes       string
}

// UploadByURL creates a new media item of the given stream type from a
// source URL. The platform fetches the file in the background.
func (c *Client) UploadByURL(ctx context.Context, streamType StreamType, fileURL string, opts UploadOptions) (*Response, error) {
	params := url.Values{}
	params.Set("url", fileURL)
	params.Set("useQueue", boolParam(opts.UseQueue))
	if opts.Filename != "" {
		params.Set("filename", opts.Filename)
	}
	if opts.RefNr != "" {
		params.Set("refnr", opts.RefNr)
	}
	params.Set("autoPublish", boolParam(opts.AutoPublish))
	if opts.Notes != "" {
		params.Set("notes", opts.Notes)
	}
	return c.call(ctx, http.MethodPost, streamType, apiManagement, "fromurl", nil, params)
}

// ByID fetches a media item by its platform id.
func (c *Client) ByID(ctx context.Context, streamType StreamType, itemID int64, params url.Values) (*Response, error) {
	return c.call(ctx, http.MethodGet, streamType, apiMedia, "byid",
		[]string{strconv.FormatInt(itemID, 10)}, params)
}

// ByReference fetches a media item by its reference number. A miss is
// reported with the not-found marker.
func (c *Client) ByReference(ctx context.Context, streamType StreamType, reference string) (*Response, error) {
	return c.call(ctx, http.MethodGet, streamType, apiMedia, "byrefnr",
		[]string{reference}, nil)
}

// Update sets general metadata attributes of a media item.
func (c *Client) Update(ctx context.Context, streamType StreamType, itemID int64, attributes url.Values) (*Response, error) {
	return c.call(ctx, http.MethodPut, streamType, apiManagement, "update",
		[]string{strconv.FormatInt(itemID, 10)}, attributes)
}

// UpdateRestrictions sets the availability restrictions of a media item.
func (c *Client) UpdateRestrictions(ctx context.Context, streamType StreamType, itemID int64, restrictions url.Values) (*Response, error) {
	return c.call(ctx, http.MethodPut, streamType, apiManagement, "updaterestrictions",
		[]string{strconv.FormatInt(itemID, 10)}, restrictions)
}

// UpdateCover uploads and sets a cover image from a URL.
func (c *Client) UpdateCover(ctx context.Context, streamType StreamType, itemID int64, coverURL string) (*Response, error) {
	params := url.Values{}
	params.Set("url", coverURL)
	return c.call(ctx, http.MethodPost, streamType, apiManagement, "cover",
		[]string{strconv.FormatInt(itemID, 10)}, params)
}

// ConnectShow links a media item to a show.
func (c *Client) ConnectShow(ctx context.Context, streamType StreamType, itemID, showID int64) (*Response, error) {
	return c.call(ctx, http.MethodPut, streamType, apiManagementConnect, "connectshow",
		[]string{strconv.FormatInt(itemID, 10), strconv.FormatInt(showID, 10)}, nil)
}

type apiType int

const (
	apiMedia apiType = iota
	apiManagement
	apiManagementConnect
)

// call issues one signed platform request and checks the status envelope.
func (c *Client) call(ctx context.Context, method string, streamType StreamType, api apiType, operation string, args []string, params url.Values) (*Response, error) {
	endpoint, err := c.buildURL(streamType, api, operation, args)
	if err != nil {
		return nil, err
	}

	var body string
	if params != nil {
		body = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("omnia: build request: %w", err)
	}
	req.Header.Set(headerRequestCID, c.sessionID)
	req.Header.Set(headerRequestToken, c.signature(operation))
	if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.Debug("platform request",
		slog.String("method", method), slog.String("operation", operation), slog.String("url", endpoint))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "omnia", operation, endpoint, err)
	}
	defer resp.Body.Close()

	var decoded Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "omnia", operation, "decode response", err)
	}
	switch {
	case decoded.Metadata.Status == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "omnia", operation, endpoint, nil)
	case decoded.Metadata.Status >= http.StatusMultipleChoices:
		hint := decoded.Metadata.ErrorHint
		if hint == "" {
			hint = "no error hint"
		}
		return nil, services.Wrap(services.ErrExternalService, "omnia", operation,
			fmt.Sprintf("status %d: %s", decoded.Metadata.Status, hint), nil)
	}
	return &decoded, nil
}

// buildURL assembles the endpoint path for the given API flavor.
func (c *Client) buildURL(streamType StreamType, api apiType, operation string, args []string) (string, error) {
	switch api {
	case apiMedia:
		return joinURL(c.baseURL, c.domainID, string(streamType), operation, strings.Join(args, "/")), nil
	case apiManagement:
		return joinURL(c.baseURL, c.domainID, "manage", string(streamType), strings.Join(args, "/"), operation), nil
	case apiManagementConnect:
		if len(args) < 2 {
			return "", fmt.Errorf("omnia: connect calls need at least two args, got %d", len(args))
		}
		return joinURL(c.baseURL, c.domainID, "manage", string(streamType), args[0], operation, strings.Join(args[1:], "/")), nil
	}
	return "", fmt.Errorf("omnia: unknown api type %d", api)
}

// signature derives the request token: md5 over operation, domain id, and
// API secret.
func (c *Client) signature(operation string) string {
	sum := md5.Sum([]byte(operation + c.domainID + c.apiSecret))
	return hex.EncodeToString(sum[:])
}

func joinURL(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, "/")
}

func boolParam(value bool) string {
	if value {
		return "1"
	}
	return "0"
}
