package catalog

import (
	"time"

	"aircheck/internal/baserow"
	"aircheck/internal/states"
)

// Column names of the upload table's file fields. Exposed so callers can
// attach files to a specific column without repeating string literals.
const (
	FieldSourceFile    = "Source File"
	FieldOptimizedFile = "Optimized File"
	FieldWaveform      = "Waveform"
	FieldCover         = "Cover"
	FieldManualFile    = "Manual File"
)

// Medium values of the show medium single-select.
const (
	MediumNews  = "News"
	MediumMusic = "Music"
)

// Person is a producer who submits uploads through the personalized form.
type Person struct {
	ID         int64                 `json:"id"`
	Name       string                `json:"Name"`
	Email      string                `json:"E-Mail"`
	Shows      baserow.LinkField     `json:"Shows"`
	UUID       string                `json:"UUID"`
	FormState  *baserow.SelectOption `json:"Upload Form"`
	LegacyUUID string                `json:"Legacy UUID"`
}

// FormEnabled reports whether the upload form accepts submissions for this
// person.
func (p Person) FormEnabled() bool {
	return p.FormState != nil && p.FormState.Value == "Enabled"
}

// Show is a broadcast format with one or more responsible producers.
type Show struct {
	ID          int64                 `json:"id"`
	Name        string                `json:"Name"`
	Description string                `json:"Description"`
	Responsible baserow.LinkField     `json:"Responsible"`
	Supervisors baserow.LinkField     `json:"Supervised by"`
	Cover       baserow.FileField     `json:"Cover"`
	PlatformID  *int64                `json:"Platform ID"`
	Medium      *baserow.SelectOption `json:"Medium"`
}

// IsNews reports whether the show's medium is news. News uploads trigger an
// extra push notification on submission.
func (s Show) IsNews() bool {
	return s.Medium != nil && s.Medium.Value == MediumNews
}

// Upload is one episode submission for a show by a person.
type Upload struct {
	ID                 int64               `json:"id"`
	Name               string              `json:"Name"`
	Uploader           baserow.LinkField   `json:"Uploaded by"`
	Show               baserow.LinkField   `json:"Show"`
	PlannedBroadcastAt time.Time           `json:"Planned Broadcast"`
	Description        string              `json:"Description"`
	ProducerComment    string              `json:"Producer Comment"`
	Waveform           baserow.FileField   `json:"Waveform"`
	SourceFile         baserow.FileField   `json:"Source File"`
	OptimizedFile      baserow.FileField   `json:"Optimized File"`
	ManualFile         baserow.FileField   `json:"Manual File"`
	Cover              baserow.FileField   `json:"Cover"`
	Duration           baserow.Duration    `json:"Duration"`
	RawStates          baserow.MultiSelect `json:"Status"`
	OptimizationLog    string              `json:"Optimization Log"`
	CreatedAt          *time.Time          `json:"Uploaded at"`
	LegacyUUID         string              `json:"Legacy UUID"`
	PlatformID         *int64              `json:"Platform ID"`
}

// States decodes the raw multi-select values into a track state set.
func (u Upload) States() (states.Set, error) {
	return states.Decode(u.RawStates.Values())
}

// Exported reports whether the upload already carries a platform item id.
func (u Upload) Exported() bool {
	return u.PlatformID != nil && *u.PlatformID != 0
}

// BroadcastFile returns the file to publish: the manually supplied file wins
// over the optimized one.
func (u Upload) BroadcastFile() (baserow.FileRef, bool) {
	if ref, ok := u.ManualFile.First(); ok {
		return ref, true
	}
	return u.OptimizedFile.First()
}
