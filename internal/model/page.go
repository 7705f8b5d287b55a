package model

// Page is the subset of a bio page this service reads.
type Page struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Title      string  `json:"title"`
	Slug       string  `json:"slug"`
	ShareToken *string `json:"-"`
}

// LinkMeta is the link metadata needed to label top-links rows.
type LinkMeta struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}
