package models

import "time"

// Author is the user an article belongs to. Username is filled whenever the
// query joined the users table.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// Article is a published post. The author is fixed at creation time.
type Article struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	PublishedDate time.Time `json:"publishedDate"`
	Author        Author    `json:"author"`
	CoverKey      string    `json:"coverKey,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ArticlePage is one page of a listing plus the pre-pagination total.
type ArticlePage struct {
	Data  []Article `json:"data"`
	Total int64     `json:"total"`
}

// NewArticle is the input for creating an article. A nil PublishedDate means
// "now".
type NewArticle struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	PublishedDate *time.Time `json:"publishedDate,omitempty"`
}

// ArticlePatch is a partial update; nil fields are left unchanged.
type ArticlePatch struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	PublishedDate *time.Time `json:"publishedDate,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ArticlePatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.PublishedDate == nil
}

// CoverUpload tells the author where to PUT a cover image.
type CoverUpload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
