package models

// Item is a purchasable catalog entry (an audio-book with a video reference)
type Item struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	// Price is in cents
	Price    int64  `json:"price"`
	VideoURL string `json:"youtubeUrl"`
	Free     bool   `json:"free,omitempty"`
}

// Question is a yes/no prompt. Answering yes grants Items.
type Question struct {
	Text    string   `json:"text"`
	ItemIDs []string `json:"books,omitempty"`

	// Resolved from ItemIDs when the catalog is loaded
	Items []Item `json:"-"`
}

// Chapter is a named, ordered sequence of questions
type Chapter struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// QuestionCount returns the number of questions in the chapter
func (c *Chapter) QuestionCount() int {
	return len(c.Questions)
}

// ContainsItem reports whether items holds an item with the given ID
func ContainsItem(items []Item, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}
