package catalog

import (
	"fmt"
	"strings"
	"time"
)

// CanonicalReference derives the deterministic identifier prefix for an
// upload from its scheduled broadcast time and row id. It is used for both
// storage file naming and duplicate lookups on the distribution platform.
func CanonicalReference(plannedBroadcastAt time.Time, uploadID int64) string {
	return fmt.Sprintf("%s_%d", plannedBroadcastAt.Format("060102-1504"), uploadID)
}

// FileName builds a storage file name from a canonical reference, a short
// artifact slug (raw, cover, waveform, opt), and a file extension. An empty
// extension yields a bare name; a missing leading dot is added.
func FileName(reference, slug, extension string) string {
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return reference + "_" + slug + extension
}

// CanonicalReference derives the upload's reference from its own fields.
func (u Upload) CanonicalReference() string {
	return CanonicalReference(u.PlannedBroadcastAt, u.ID)
}
