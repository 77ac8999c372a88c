package greader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	pathLogin         = "/reader/api/0/accounts/ClientLogin"
	pathSubscriptions = "/reader/api/0/subscription/list"
	pathUnreadCount   = "/reader/api/0/unread-count"
	pathItemIDs       = "/reader/api/0/stream/items/ids"
	pathItemContents  = "/reader/api/0/stream/items/contents"
	pathEditTag       = "/reader/api/0/edit-tag"
	pathUserInfo      = "/reader/api/0/user-info"
)

// Config holds gateway configuration.
type Config struct {
	BaseURL  string
	ClientID string
	Timeout  time.Duration
}

// IDQuery selects the article ids listed for one feed.
type IDQuery struct {
	FeedID     string
	OnlyUnread bool
	Limit      int
}

// Client translates sync intents into Google Reader API calls. Every
// operation issues exactly one request and reports failure as *Error.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	logger     *slog.Logger
}

// New creates a new gateway client.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clientID: cfg.ClientID,
		logger:   logger.With("component", "greader"),
	}
}

// ExchangeCredentials returns the auth token for the account. A 200 response
// without a token yields an empty string.
func (c *Client) ExchangeCredentials(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(loginRequest{
		Client:      c.clientID,
		AccountType: "HOSTED_OR_GOOGLE",
		Service:     "reader",
		Email:       username,
		Passwd:      password,
		Output:      "json",
	})
	if err != nil {
		return "", transportError("login", fmt.Errorf("marshal request: %w", err))
	}

	var resp loginResponse
	err = c.do(ctx, request{
		op:          "login",
		method:      http.MethodPost,
		path:        pathLogin,
		body:        bytes.NewReader(body),
		contentType: "application/json",
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Auth, nil
}

func (c *Client) ListSubscriptions(ctx context.Context, token string) ([]Subscription, error) {
	var resp subscriptionList
	err := c.do(ctx, request{
		op:     "list subscriptions",
		method: http.MethodGet,
		path:   pathSubscriptions,
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Subscriptions, nil
}

func (c *Client) ListUnreadCounts(ctx context.Context, token string) ([]UnreadCount, error) {
	var resp unreadCountList
	err := c.do(ctx, request{
		op:     "list unread counts",
		method: http.MethodGet,
		path:   pathUnreadCount,
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.UnreadCounts, nil
}

// ListArticleIDs returns item ids in server order.
func (c *Client) ListArticleIDs(ctx context.Context, token string, q IDQuery) ([]string, error) {
	query := url.Values{}
	query.Set("s", FeedStream(q.FeedID))
	if q.Limit > 0 {
		query.Set("n", strconv.Itoa(q.Limit))
	}
	if q.OnlyUnread {
		query.Set("xt", ReadTag)
	}

	var resp itemRefList
	err := c.do(ctx, request{
		op:     "list article ids",
		method: http.MethodGet,
		path:   pathItemIDs,
		query:  query,
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.ItemRefs))
	for _, ref := range resp.ItemRefs {
		if ref.ID == "" {
			continue
		}
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// FetchArticleContents fetches bodies for bare ids. Returned items carry
// namespaced ids; use BareID to match them.
func (c *Client) FetchArticleContents(ctx context.Context, token string, ids []string) ([]Item, error) {
	query := url.Values{}
	for _, id := range ids {
		query.Add("i", ItemID(id))
	}

	var resp itemList
	err := c.do(ctx, request{
		op:     "fetch article contents",
		method: http.MethodGet,
		path:   pathItemContents,
		query:  query,
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SetReadState adds the read tag when read is true and removes it otherwise.
func (c *Client) SetReadState(ctx context.Context, token, articleID string, read bool) error {
	form := url.Values{}
	if read {
		form.Set("a", ReadTag)
	} else {
		form.Set("r", ReadTag)
	}
	form.Set("i", ItemID(articleID))

	return c.do(ctx, request{
		op:          "set read state",
		method:      http.MethodPost,
		path:        pathEditTag,
		token:       token,
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded;charset=UTF-8",
	}, nil)
}

func (c *Client) UserInfo(ctx context.Context, token string) (*UserInfo, error) {
	var resp UserInfo
	err := c.do(ctx, request{
		op:     "user info",
		method: http.MethodGet,
		path:   pathUserInfo,
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	token       string
	body        io.Reader
	contentType string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	query := r.query
	if query == nil {
		query = url.Values{}
	}
	if r.method == http.MethodGet {
		query.Set("output", "json")
	}

	endpoint := c.baseURL + r.path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, r.body)
	if err != nil {
		return transportError(r.op, fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ReaderSync/1.0")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "GoogleLogin auth="+r.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "op", r.op, "error", err)
		return transportError(r.op, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		"op", r.op,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return httpError(r.op, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return transportError(r.op, fmt.Errorf("decode response: %w", err))
	}

	return nil
}
