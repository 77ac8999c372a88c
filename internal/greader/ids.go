package greader

import (
	"strings"
	"time"
)

const (
	ReadTag = "user/-/state/com.google/read"

	itemPrefix = "tag:google.com,2005:reader/item/"
	feedPrefix = "feed/"
)

// BareID strips the namespace from ids like "feed/abc" or
// "tag:google.com,2005:reader/item/abc", keeping the suffix after the last '/'.
func BareID(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// ItemID namespaces a bare article id.
func ItemID(bare string) string {
	return itemPrefix + bare
}

// FeedStream namespaces a bare feed id as a stream id.
func FeedStream(bare string) string {
	if strings.HasPrefix(bare, feedPrefix) {
		return bare
	}
	return feedPrefix + bare
}

// IconURL makes scheme-relative icon urls absolute.
func IconURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

// AlternateURL is the first alternate link's href. Items without one fall
// back to the first canonical link, then to "".
func (i Item) AlternateURL() string {
	for _, links := range [][]Link{i.Alternate, i.Canonical} {
		if len(links) > 0 && links[0].Href != "" {
			return links[0].Href
		}
	}
	return ""
}

// PublishedAt converts the microsecond timestamp to a millisecond-precision
// time, falling back to the seconds-based "published" field.
func (i Item) PublishedAt() time.Time {
	if i.TimestampUsec > 0 {
		return time.UnixMilli(int64(i.TimestampUsec) / 1000)
	}
	if i.Published > 0 {
		return time.Unix(int64(i.Published), 0)
	}
	return time.Time{}
}
