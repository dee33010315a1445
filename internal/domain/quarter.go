package domain

import (
	"fmt"
	"strings"
	"time"
)

// Quarter is a calendar quarter. The mapping from months is fixed and not
// configurable: Q1 = Jan–Mar, Q2 = Apr–Jun, Q3 = Jul–Sep, Q4 = Oct–Dec.
type Quarter int

const (
	Q1 Quarter = iota + 1
	Q2
	Q3
	Q4
)

// Quarters lists the quarters in calendar order.
var Quarters = [...]Quarter{Q1, Q2, Q3, Q4}

// QuarterOf returns the quarter containing month m.
func QuarterOf(m time.Month) Quarter {
	switch {
	case m <= time.March:
		return Q1
	case m <= time.June:
		return Q2
	case m <= time.September:
		return Q3
	default:
		return Q4
	}
}

// ParseQuarter accepts "Q1".."Q4" in any case.
func ParseQuarter(s string) (Quarter, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Q1":
		return Q1, nil
	case "Q2":
		return Q2, nil
	case "Q3":
		return Q3, nil
	case "Q4":
		return Q4, nil
	}
	return 0, fmt.Errorf("ParseQuarter: invalid quarter %q", s)
}

func (q Quarter) String() string {
	if !q.Valid() {
		return fmt.Sprintf("Quarter(%d)", int(q))
	}
	return fmt.Sprintf("Q%d", int(q))
}

// Valid reports whether q is one of Q1..Q4.
func (q Quarter) Valid() bool {
	return q >= Q1 && q <= Q4
}

// LastMonth is the final month of the quarter.
func (q Quarter) LastMonth() time.Month {
	return time.Month(int(q) * 3)
}

// EndDate is the last calendar day of the quarter in year.
func (q Quarter) EndDate(year int) time.Time {
	// Day 0 of the following month is the last day of LastMonth.
	return time.Date(year, q.LastMonth()+1, 0, 0, 0, 0, 0, time.UTC)
}

// MarshalText lets quarters serve as JSON object keys.
func (q Quarter) MarshalText() ([]byte, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("Quarter.MarshalText: invalid quarter %d", int(q))
	}
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Quarter) UnmarshalText(b []byte) error {
	parsed, err := ParseQuarter(string(b))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// QuarterBucket holds the transactions of one (year, quarter) and whether
// that quarter had fully elapsed when the bucket was built.
type QuarterBucket struct {
	Transactions []Transaction `json:"transactions"`
	IsClosed     bool          `json:"is_closed"`
}
