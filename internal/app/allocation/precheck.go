package allocation

import "fmt"

// CapacityMode selects the necessary condition checked before solving.
type CapacityMode string

const (
	// CapacityAggregate requires Σmin ≤ students ≤ Σmax.
	CapacityAggregate CapacityMode = "aggregate"
	// CapacitySmallest requires min(min) ≤ students ≤ Σmax. Projects may be
	// left unused, so this is the tight necessary condition; it accepts some
	// inputs CapacityAggregate rejects.
	CapacitySmallest CapacityMode = "smallest"
)

// ParseCapacityMode validates a configured mode; "" means CapacityAggregate.
func ParseCapacityMode(s string) (CapacityMode, error) {
	switch CapacityMode(s) {
	case "", CapacityAggregate:
		return CapacityAggregate, nil
	case CapacitySmallest:
		return CapacitySmallest, nil
	}
	return "", fmt.Errorf("unknown capacity check %q (want %q or %q)", s, CapacityAggregate, CapacitySmallest)
}

// CapacityReport summarises aggregate capacity against the population.
type CapacityReport struct {
	Students        int  `json:"students"`
	Projects        int  `json:"projects"`
	MinTotal        int  `json:"min_total"`
	MaxTotal        int  `json:"max_total"`
	SmallestMin     int  `json:"smallest_min"`
	TooFewStudents  bool `json:"too_few_students"`
	TooManyStudents bool `json:"too_many_students"`
}

// Capacity computes the report for a snapshot. TooFewStudents uses the
// aggregate floor.
func Capacity(s *Snapshot) CapacityReport {
	r := CapacityReport{
		Students: len(s.Students),
		Projects: len(s.Projects),
	}
	for i, p := range s.Projects {
		r.MinTotal += p.MinStudents
		r.MaxTotal += p.MaxStudents
		if i == 0 || p.MinStudents < r.SmallestMin {
			r.SmallestMin = p.MinStudents
		}
	}
	r.TooFewStudents = r.Students < r.MinTotal
	r.TooManyStudents = r.Students > r.MaxTotal
	return r
}

// CheckCapacity returns *InfeasibleCapacityError when the population cannot
// fit the projects' aggregate bounds under mode.
func CheckCapacity(s *Snapshot, mode CapacityMode) error {
	r := Capacity(s)
	floor := r.MinTotal
	if mode == CapacitySmallest {
		// With no students every project stays unused, so no floor applies.
		floor = r.SmallestMin
		if r.Students == 0 {
			floor = 0
		}
	}
	if r.Students < floor || r.Students > r.MaxTotal {
		return &InfeasibleCapacityError{
			Mode:     mode,
			MinTotal: floor,
			MaxTotal: r.MaxTotal,
			Students: r.Students,
		}
	}
	return nil
}
