package demand

import "fmt"

// HoursPerDay is the resolution of the legacy hourly demand format.
const HoursPerDay = 24

// Legacy APIs express demand as 24 hour-of-day integers per day. Half-hour
// buckets are canonical here, so conversion is explicit and lossless in the
// hourly->canonical direction:
//
//   - FromHourly copies each hour's value into both of its half-hour buckets.
//   - ToHourly takes the max of each half-hour pair.
//
// Max (rather than sum or average) keeps headcount semantics intact ("3
// needed during hour 10" stays 3, not 6) and maps binary curves to binary
// curves. FromHourly followed by ToHourly is the identity.

// FromHourly expands a 24-bucket-per-day hourly week into the canonical
// half-hour form.
func FromHourly(hourly Week) (Week, error) {
	out := NewWeek()
	for _, day := range Days {
		src, _ := hourly.day(day)
		if len(src) != HoursPerDay {
			return Week{}, &ValidationError{Reason: fmt.Sprintf("%s has %d hourly buckets, want %d", day, len(src), HoursPerDay)}
		}
		dst, _ := out.day(day)
		for h, v := range src {
			if v < 0 {
				return Week{}, &ValidationError{Reason: fmt.Sprintf("%s[%d] is negative", day, h)}
			}
			dst[2*h] = v
			dst[2*h+1] = v
		}
	}
	return out, nil
}

// ToHourly collapses a canonical half-hour week into the legacy hourly form.
func ToHourly(w Week) (Week, error) {
	if err := w.validate(false); err != nil {
		return Week{}, err
	}
	var out Week
	for _, day := range Days {
		src, _ := w.day(day)
		dst := make([]int, HoursPerDay)
		for h := 0; h < HoursPerDay; h++ {
			a, b := src[2*h], src[2*h+1]
			if a > b {
				dst[h] = a
			} else {
				dst[h] = b
			}
		}
		out.setDay(day, dst)
	}
	return out, nil
}
