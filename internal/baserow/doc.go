// Package baserow is a thin client for the Baserow-compatible tabular store
// acting as the system-of-record.
//
// Rows are decoded with user field names into caller-supplied structs; the
// field types in this package cover the non-scalar columns the application
// uses: table links, single/multi selects, file attachments, and durations.
// Writes go through explicit field maps so a caller only ever touches the
// columns it owns.
package baserow
