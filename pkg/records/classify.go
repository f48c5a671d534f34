package records

var primaryColorNames = []string{"red", "blue", "yellow"}

// primaryColors is the fixed set of colors flagged as primary.
var primaryColors = func() map[string]struct{} {
	m := make(map[string]struct{}, len(primaryColorNames))
	for _, c := range primaryColorNames {
		m[c] = struct{}{}
	}
	return m
}()

// PrimaryColors returns the primary color names in a stable order.
// The caller owns the returned slice.
func PrimaryColors() []string {
	return append([]string(nil), primaryColorNames...)
}

// IsPrimaryColor reports whether color is one of red, blue or yellow.
// Matching is exact; "Red" is not primary.
func IsPrimaryColor(color string) bool {
	_, ok := primaryColors[color]
	return ok
}

// Classify returns a copy of each record tagged with IsPrimary.
// The input slice is never modified. A nil input yields an empty slice.
func Classify(recs []Record) []AugmentedRecord {
	out := make([]AugmentedRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, AugmentedRecord{
			Record:    r,
			IsPrimary: IsPrimaryColor(r.Color),
		})
	}
	return out
}
