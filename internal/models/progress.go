package models

// ProgressMap maps a chapter ID to the index of the next unanswered question.
// A value equal to the chapter's question count marks the chapter complete.
type ProgressMap map[string]int

// Index returns the stored resume index for a chapter, or 0 when it is
// missing or negative
func (p ProgressMap) Index(chapterID string) int {
	return max(p[chapterID], 0)
}

// Completed reports whether every question of the chapter has been answered
func (p ProgressMap) Completed(ch *Chapter) bool {
	return p.Index(ch.ID) >= ch.QuestionCount()
}

// Percent returns progress through the chapter as 0-100
func (p ProgressMap) Percent(ch *Chapter) int {
	n := ch.QuestionCount()
	if n == 0 {
		return 100
	}
	idx := p.Index(ch.ID)
	if idx > n {
		idx = n
	}
	return idx * 100 / n
}

// Clone returns a copy that can be modified without touching p
func (p ProgressMap) Clone() ProgressMap {
	out := make(ProgressMap, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
