// Package records defines the record model served by the records endpoint
// and the pure classification and aggregation steps applied to a page.
package records

// Disposition is a record's status field.
type Disposition string

const (
	// DispositionOpen marks a record that is still open.
	DispositionOpen Disposition = "open"

	// DispositionClosed marks a record that has been closed.
	DispositionClosed Disposition = "closed"
)

// Record is a single entry as returned by the records endpoint.
type Record struct {
	ID          string      `json:"id"`
	Color       string      `json:"color"`
	Disposition Disposition `json:"disposition"`
}

// AugmentedRecord is a Record tagged by Classify.
type AugmentedRecord struct {
	Record
	IsPrimary bool `json:"isPrimary"`
}

// IsOpen reports whether the record's disposition is open.
func (r AugmentedRecord) IsOpen() bool {
	return r.Disposition == DispositionOpen
}

// IsClosedPrimary reports whether the record is closed and has a primary color.
func (r AugmentedRecord) IsClosedPrimary() bool {
	return r.Disposition == DispositionClosed && r.IsPrimary
}
