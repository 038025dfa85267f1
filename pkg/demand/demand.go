package demand

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// BucketsPerDay is the canonical resolution: one bucket per half hour.
const BucketsPerDay = 48

// Days lists the recognized day names in week order (Sunday first, matching
// the wire format).
var Days = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// ValidationError reports a malformed week shape or an out-of-range
// day/bucket access. It is always raised before any state changes.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "demand: " + e.Reason
}

func badDay(day string) error {
	return &ValidationError{Reason: fmt.Sprintf("unknown day %q", day)}
}

func badBucket(bucket int) error {
	return &ValidationError{Reason: fmt.Sprintf("bucket %d out of range [0,%d)", bucket, BucketsPerDay)}
}

// Week is the shared layout for demand, availability and preference curves:
// one slice of half-hour buckets per day of the week.
type Week struct {
	Sunday    []int `json:"sunday"`
	Monday    []int `json:"monday"`
	Tuesday   []int `json:"tuesday"`
	Wednesday []int `json:"wednesday"`
	Thursday  []int `json:"thursday"`
	Friday    []int `json:"friday"`
	Saturday  []int `json:"saturday"`
}

// NewWeek returns a week with every bucket zeroed.
func NewWeek() Week {
	var w Week
	for _, day := range Days {
		w.setDay(day, make([]int, BucketsPerDay))
	}
	return w
}

func (w *Week) day(day string) ([]int, error) {
	switch day {
	case "sunday":
		return w.Sunday, nil
	case "monday":
		return w.Monday, nil
	case "tuesday":
		return w.Tuesday, nil
	case "wednesday":
		return w.Wednesday, nil
	case "thursday":
		return w.Thursday, nil
	case "friday":
		return w.Friday, nil
	case "saturday":
		return w.Saturday, nil
	}
	return nil, badDay(day)
}

func (w *Week) setDay(day string, buckets []int) {
	switch day {
	case "sunday":
		w.Sunday = buckets
	case "monday":
		w.Monday = buckets
	case "tuesday":
		w.Tuesday = buckets
	case "wednesday":
		w.Wednesday = buckets
	case "thursday":
		w.Thursday = buckets
	case "friday":
		w.Friday = buckets
	case "saturday":
		w.Saturday = buckets
	}
}

// Get returns the value at (day, bucket).
func (w *Week) Get(day string, bucket int) (int, error) {
	buckets, err := w.day(day)
	if err != nil {
		return 0, err
	}
	if bucket < 0 || bucket >= BucketsPerDay {
		return 0, badBucket(bucket)
	}
	if bucket >= len(buckets) {
		return 0, nil
	}
	return buckets[bucket], nil
}

// Set writes value at (day, bucket).
func (w *Week) Set(day string, bucket, value int) error {
	buckets, err := w.day(day)
	if err != nil {
		return err
	}
	if bucket < 0 || bucket >= BucketsPerDay {
		return badBucket(bucket)
	}
	if value < 0 {
		return &ValidationError{Reason: fmt.Sprintf("negative value %d", value)}
	}
	if buckets == nil {
		buckets = make([]int, BucketsPerDay)
		w.setDay(day, buckets)
	}
	buckets[bucket] = value
	return nil
}

// DayTotal sums the buckets of one day.
func (w *Week) DayTotal(day string) (int, error) {
	buckets, err := w.day(day)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, v := range buckets {
		total += v
	}
	return total, nil
}

// WeekTotal sums every bucket of the week.
func (w *Week) WeekTotal() int {
	total := 0
	for _, day := range Days {
		t, _ := w.DayTotal(day)
		total += t
	}
	return total
}

// DayBuckets returns the bucket slice for a day, zero-filled to the
// canonical length.
func (w *Week) DayBuckets(day string) ([]int, error) {
	buckets, err := w.day(day)
	if err != nil {
		return nil, err
	}
	out := make([]int, BucketsPerDay)
	copy(out, buckets)
	return out, nil
}

func (w *Week) validate(binary bool) error {
	for _, day := range Days {
		buckets, _ := w.day(day)
		if len(buckets) != BucketsPerDay {
			return &ValidationError{Reason: fmt.Sprintf("%s has %d buckets, want %d", day, len(buckets), BucketsPerDay)}
		}
		for i, v := range buckets {
			if v < 0 {
				return &ValidationError{Reason: fmt.Sprintf("%s[%d] is negative", day, i)}
			}
			if binary && v > 1 {
				return &ValidationError{Reason: fmt.Sprintf("%s[%d]=%d, want 0 or 1", day, i, v)}
			}
		}
	}
	return nil
}

// Demand is a per-bucket headcount curve for a role's week.
type Demand struct{ Week }

// Validate checks the canonical shape: 48 non-negative buckets per day.
func (d *Demand) Validate() error { return d.validate(false) }

// Availability is a worker's hard availability curve: 1 available, 0 not.
type Availability struct{ Week }

// Validate checks the canonical shape with binary values.
func (a *Availability) Validate() error { return a.validate(true) }

// Covers reports whether every half-hour bucket in [startBucket, stopBucket)
// of the given day is marked available.
func (a *Availability) Covers(day string, startBucket, stopBucket int) (bool, error) {
	buckets, err := a.DayBuckets(day)
	if err != nil {
		return false, err
	}
	if startBucket < 0 || stopBucket > BucketsPerDay || startBucket >= stopBucket {
		return false, badBucket(startBucket)
	}
	for i := startBucket; i < stopBucket; i++ {
		if buckets[i] != 1 {
			return false, nil
		}
	}
	return true, nil
}

// Preference is a worker's soft preference curve: 1 preferred, 0 not.
// Advisory input only, never a hard constraint.
type Preference struct{ Week }

// Validate checks the canonical shape with binary values.
func (p *Preference) Validate() error { return p.validate(true) }

// Value serializes the week as the contract's JSON shape for storage.
func (w Week) Value() (driver.Value, error) {
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan restores the week from its stored JSON shape.
func (w *Week) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*w = NewWeek()
		return nil
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	}
	return fmt.Errorf("demand: cannot scan %T", src)
}
