package alignment

// Event is one aligned subtitle line. Speaker is empty when the oracle gave none.
type Event struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// Defect records why a response record was dropped. Record is the 1-based line
// number for the delimited shape and the 0-based array index for the
// structured shape.
type Defect struct {
	Record int
	Reason string
}

// Result is the outcome of parsing one oracle response.
type Result struct {
	Events  []Event
	Dropped int
	Defects []Defect
}

func (r *Result) drop(record int, reason string) {
	r.Dropped++
	r.Defects = append(r.Defects, Defect{Record: record, Reason: reason})
}

// OrderViolations counts places where an event starts before its predecessor.
// Events are never re-sorted; the count is only reported.
func OrderViolations(events []Event) int {
	count := 0
	for i := 1; i < len(events); i++ {
		if events[i].Start < events[i-1].Start {
			count++
		}
	}
	return count
}
