package srs

// MasteryPolicy promotes long-horizon records to MASTERED. A zero threshold
// disables promotion, so repeated HARD items stay due indefinitely.
type MasteryPolicy struct {
	IntervalDays int
}

func (p MasteryPolicy) Enabled() bool { return p.IntervalDays > 0 }

// Apply returns r, possibly promoted. Promotion is one-way; a later grading
// through Schedule returns the record to ACTIVE.
func (p MasteryPolicy) Apply(r Record) Record {
	if p.Enabled() && r.Status == StatusActive && r.IntervalDays >= p.IntervalDays {
		r.Status = StatusMastered
	}
	return r
}
