package domain

import "time"

type Feed struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	IconURL     string `json:"icon_url,omitempty"`
	UnreadCount int    `json:"unread_count"`
}

// Article is a stub (only ID set) until IsFetched becomes true.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Content     string     `json:"content,omitempty"`
	Author      string     `json:"author,omitempty"`
	URL         string     `json:"url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	IsRead      bool       `json:"is_read"`
	IsFetched   bool       `json:"is_fetched"`
}

// ArticleContent is a materialization record for a stub, keyed by bare id.
type ArticleContent struct {
	ID          string
	Title       string
	Content     string
	Author      string
	URL         string
	PublishedAt time.Time
}

type UnreadCount struct {
	FeedID string
	Count  int
}
