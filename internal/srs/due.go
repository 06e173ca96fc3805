package srs

import "time"

// DueQuestionIDs returns the ids of records due on or before today followed by
// mistake-book questions that have no record at all. Mastered records are
// never due.
func DueQuestionIDs(records []Record, mistakes []string, today time.Time) []string {
	seen := make(map[string]struct{}, len(records))
	var out []string
	for _, r := range records {
		seen[r.QuestionID] = struct{}{}
		if r.Status == StatusMastered || !r.DueOn(today) {
			continue
		}
		out = append(out, r.QuestionID)
	}
	for _, qid := range mistakes {
		if _, ok := seen[qid]; ok {
			continue
		}
		seen[qid] = struct{}{}
		out = append(out, qid)
	}
	return out
}
