package greader

import (
	"bytes"
	"encoding/json"
	"strconv"
)

type loginRequest struct {
	Client      string `json:"client"`
	AccountType string `json:"accountType"`
	Service     string `json:"service"`
	Email       string `json:"Email"`
	Passwd      string `json:"Passwd"`
	Output      string `json:"output"`
}

type loginResponse struct {
	Auth string `json:"Auth"`
}

type Subscription struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	IconURL    string     `json:"iconUrl"`
	URL        string     `json:"url"`
	HTMLURL    string     `json:"htmlUrl"`
	Categories []Category `json:"categories"`
}

type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type subscriptionList struct {
	Subscriptions []Subscription `json:"subscriptions"`
}

type UnreadCount struct {
	ID    string `json:"id"`
	Count Number `json:"count"`
}

type unreadCountList struct {
	UnreadCounts []UnreadCount `json:"unreadcounts"`
}

type itemRef struct {
	ID string `json:"id"`
}

type itemRefList struct {
	ItemRefs []itemRef `json:"itemRefs"`
}

type Item struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Published     Number  `json:"published"`
	TimestampUsec Number  `json:"timestampUsec"`
	Summary       Content `json:"summary"`
	Alternate     []Link  `json:"alternate"`
	Canonical     []Link  `json:"canonical"`
}

type Content struct {
	Content string `json:"content"`
}

type Link struct {
	Href string `json:"href"`
	Type string `json:"type"`
}

type itemList struct {
	Items []Item `json:"items"`
}

type UserInfo struct {
	UserID        string `json:"userId"`
	UserName      string `json:"userName"`
	UserProfileID string `json:"userProfileId"`
	UserEmail     string `json:"userEmail"`
}

// Number decodes integers the API sends either as JSON numbers or as
// quoted strings (timestampUsec is a string, count is a number).
type Number int64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		fv, ferr := json.Number(data).Float64()
		if ferr != nil {
			return err
		}
		v = int64(fv)
	}
	*n = Number(v)
	return nil
}
