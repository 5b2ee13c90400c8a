package omnia

import (
	"encoding/json"
	"fmt"
)

// StreamType keys every platform call to a media kind.
type StreamType string

const (
	StreamTypeAudio StreamType = "audio"
	StreamTypeVideo StreamType = "videos"
	StreamTypeShow  StreamType = "shows"
)

// ResponseMetadata is the status envelope every platform response carries.
type ResponseMetadata struct {
	Status         int     `json:"status"`
	APIVersion     string  `json:"apiversion"`
	Verb           string  `json:"verb"`
	ProcessingTime float64 `json:"processingtime"`
	CalledWith     string  `json:"calledwith"`
	ForDomain      int64   `json:"fordomain"`
	Notice         string  `json:"notice"`
	ErrorHint      string  `json:"errorhint"`
}

// ResponsePaging describes the window of a list result.
type ResponsePaging struct {
	Start       int `json:"start"`
	Limit       int `json:"limit"`
	ResultCount int `json:"resultcount"`
}

// Response is the generic platform response. The result payload shape
// depends on the called API, so it stays raw until a typed decode is asked
// for.
type Response struct {
	Metadata ResponseMetadata `json:"metadata"`
	Result   json.RawMessage  `json:"result"`
	Paging   *ResponsePaging  `json:"paging"`
}

// ItemUpdate reports the item created or touched by a management call.
type ItemUpdate struct {
	StreamType   StreamType `json:"streamtype"`
	GeneratedID  int64      `json:"generatedID"`
	GeneratedGID int64      `json:"generatedGID"`
}

// ManagementResult is the payload of management API responses.
type ManagementResult struct {
	Message     string      `json:"message"`
	ItemUpdate  *ItemUpdate `json:"itemupdate"`
	OperationID *int64      `json:"operationid"`
}

// MediaResultGeneral holds the common attributes of a media item.
type MediaResultGeneral struct {
	ID          int64  `json:"ID"`
	GID         int64  `json:"GID"`
	Hash        string `json:"hash"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
	ReleaseDate int64  `json:"releasedate"`
	Runtime     string `json:"runtime"`
}

// ConnectedShow is one show a media item is linked to.
type ConnectedShow struct {
	ID    int64  `json:"ID"`
	Title string `json:"title"`
}

// Restrictions is the availability window of a media item.
type Restrictions struct {
	ValidFrom  int64 `json:"validFrom"`
	ValidUntil int64 `json:"validUntil"`
}

// MediaResult is the payload of media API responses for a single item.
type MediaResult struct {
	General        MediaResultGeneral `json:"general"`
	ImageData      json.RawMessage    `json:"imagedata"`
	ConnectedShows []ConnectedShow    `json:"connectedshows"`
	Restrictions   *Restrictions      `json:"restrictions"`
}

// Management decodes the result as a management payload.
func (r *Response) Management() (*ManagementResult, error) {
	var result ManagementResult
	if err := json.Unmarshal(r.Result, &result); err != nil {
		return nil, fmt.Errorf("omnia: decode management result: %w", err)
	}
	return &result, nil
}

// Media decodes the result as a single media item payload.
func (r *Response) Media() (*MediaResult, error) {
	var result MediaResult
	if err := json.Unmarshal(r.Result, &result); err != nil {
		return nil, fmt.Errorf("omnia: decode media result: %w", err)
	}
	return &result, nil
}

// MediaList decodes the result as a list of media items.
func (r *Response) MediaList() ([]MediaResult, error) {
	var results []MediaResult
	if err := json.Unmarshal(r.Result, &results); err != nil {
		return nil, fmt.Errorf("omnia: decode media result list: %w", err)
	}
	return results, nil
}
