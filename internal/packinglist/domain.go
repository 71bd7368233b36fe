package packinglist

import "time"

// Item is a single entry on a packing list.
type Item struct {
	ID           int64  `json:"id"`
	Text         string `json:"text"`
	Checked      bool   `json:"checked"`
	DisplayOrder int    `json:"display_order"`
}

// Category groups items under a heading.
type Category struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	DisplayOrder int    `json:"display_order"`
	Items        []Item `json:"items"`
}

// List is one user's packing list. Every user has exactly one; a user who
// never saved has the empty list.
type List struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Categories []Category `json:"categories"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
