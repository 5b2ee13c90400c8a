package baserow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RowLink is a single reference to a row in another table. The store sends
// both the id and the display value of the linked row.
type RowLink struct {
	ID    int64  `json:"id"`
	Value string `json:"value"`
}

// LinkField holds one or more links to rows in another table.
type LinkField []RowLink

// IDs returns the linked row ids in order.
func (f LinkField) IDs() []int64 {
	ids := make([]int64, 0, len(f))
	for _, link := range f {
		ids = append(ids, link.ID)
	}
	return ids
}

// Encode returns the write representation of the field: the store accepts a
// plain list of row ids.
func (f LinkField) Encode() []int64 {
	return f.IDs()
}

// String renders the linked ids for logs.
func (f LinkField) String() string {
	parts := make([]string, 0, len(f))
	for _, link := range f {
		parts = append(parts, strconv.FormatInt(link.ID, 10))
	}
	return strings.Join(parts, ",")
}

// LinkTo builds a link field referencing the given row ids.
func LinkTo(ids ...int64) LinkField {
	field := make(LinkField, 0, len(ids))
	for _, id := range ids {
		field = append(field, RowLink{ID: id})
	}
	return field
}

// SelectOption is one entry of a single or multiple select field.
type SelectOption struct {
	ID    int64  `json:"id"`
	Value string `json:"value"`
	Color string `json:"color"`
}

// MultiSelect is the raw store representation of a multiple select field.
type MultiSelect []SelectOption

// Values returns the option values in order.
func (m MultiSelect) Values() []string {
	values := make([]string, 0, len(m))
	for _, option := range m {
		values = append(values, option.Value)
	}
	return values
}

// EncodeValues is the write representation of a multi select: a list of
// option values. The store matches them to option ids server-side.
func EncodeValues(values []string) []string {
	return values
}

// FileRef describes one attachment of a file field.
type FileRef struct {
	URL          string `json:"url"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name,omitempty"`
	Size         int64  `json:"size"`
	MIME         string `json:"mime_type"`
}

// FileField holds the uploaded files of a file column.
type FileField []FileRef

// First returns the first attachment, if any.
func (f FileField) First() (FileRef, bool) {
	if len(f) == 0 {
		return FileRef{}, false
	}
	return f[0], true
}

// Encode returns the write representation of the field. The store expects
// the internal names of previously uploaded files.
func (f FileField) Encode() []map[string]string {
	out := make([]map[string]string, 0, len(f))
	for _, ref := range f {
		entry := map[string]string{"name": ref.Name}
		if ref.OriginalName != "" {
			entry["original_name"] = ref.OriginalName
		}
		out = append(out, entry)
	}
	return out
}

// Duration is a duration column value in seconds. The store returns either a
// bare number or a formatted "h:mm:ss" string depending on field settings.
type Duration float64

// UnmarshalJSON accepts both representations.
func (d *Duration) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*d = 0
		return nil
	}
	if data[0] != '"' {
		var seconds float64
		if err := json.Unmarshal(data, &seconds); err != nil {
			return fmt.Errorf("duration field: %w", err)
		}
		*d = Duration(seconds)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("duration field: %w", err)
	}
	seconds, err := parseClock(text)
	if err != nil {
		return err
	}
	*d = Duration(seconds)
	return nil
}

// Seconds returns the value as float seconds.
func (d Duration) Seconds() float64 {
	return float64(d)
}

// Clock renders the duration as h:mm:ss for display and write-back.
func (d Duration) Clock() string {
	total := int(d + 0.5)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
}

func parseClock(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("duration field: cannot parse %q", text)
	}
	var seconds float64
	for _, part := range parts {
		value, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("duration field: cannot parse %q", text)
		}
		seconds = seconds*60 + value
	}
	return seconds, nil
}
