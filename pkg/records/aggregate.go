package records

// Summary is the metadata folded out of one page of classified records.
type Summary struct {
	IDs                []string          `json:"ids"`
	Open               []AugmentedRecord `json:"open"`
	ClosedPrimaryCount int               `json:"closedPrimaryCount"`
}

// Aggregate folds records left to right into a Summary.
// IDs and Open keep input order. A nil input yields empty, non-nil slices
// so the JSON form is [] rather than null.
func Aggregate(recs []AugmentedRecord) Summary {
	s := Summary{
		IDs:  make([]string, 0, len(recs)),
		Open: make([]AugmentedRecord, 0),
	}

	for _, r := range recs {
		s.IDs = append(s.IDs, r.ID)

		if r.IsOpen() {
			s.Open = append(s.Open, r)
		}

		if r.IsClosedPrimary() {
			s.ClosedPrimaryCount++
		}
	}

	return s
}
