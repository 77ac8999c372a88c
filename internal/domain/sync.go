package domain

// SyncStats is a point-in-time summary of the engine's collections.
type SyncStats struct {
	Status       AuthStatus `json:"status"`
	SelectedFeed string     `json:"selected_feed,omitempty"`
	Feeds        int        `json:"feeds"`
	Articles     int        `json:"articles"`
	Fetched      int        `json:"fetched"`
	Unread       int        `json:"unread"`
	Editing      int        `json:"editing"`
}

// BatchResult describes what a content batch did to the collection.
type BatchResult struct {
	Requested int
	Applied   int
	Dropped   int
	Stale     bool
}
