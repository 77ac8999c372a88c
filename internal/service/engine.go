package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"reader_sync/internal/config"
	"reader_sync/internal/domain"
	"reader_sync/internal/greader"
	"reader_sync/internal/state"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrLoginFailed      = errors.New("login failed")
	ErrEditInProgress   = errors.New("read state change already in progress")
	ErrArticleNotFound  = errors.New("article not in current collection")
)

// LoginErrorMessage is shown after a rejected credential exchange.
const LoginErrorMessage = "Could not log in, bad username or password?"

// FeedView is the read-only registry surface handed to the UI.
type FeedView interface {
	Feeds() []domain.Feed
	Get(id string) (domain.Feed, bool)
	Len() int
	Subscribe(fn func()) func()
}

// ArticleView is the read-only article collection surface handed to the UI.
type ArticleView interface {
	Articles() []domain.Article
	Get(id string) (domain.Article, bool)
	Counts() (total, fetched, unread int)
	Subscribe(fn func()) func()
}

// Engine keeps the local feed and article state in step with the remote
// reader service. It owns the session and all collections; the UI only
// observes them.
type Engine struct {
	api      Gateway
	tokens   TokenStore
	notifier Notifier
	feeds    *state.Registry
	articles *state.Articles
	editing  *state.Markers
	logger   *slog.Logger
	config   config.SyncConfig

	// emitMu orders busy-flag flips with their signals.
	emitMu sync.Mutex

	mu            sync.Mutex
	status        domain.AuthStatus
	token         string
	loginError    string
	selectionGen  uint64
	selectedFeed  string
	selectedTitle string
	updatingList  int
	loadingPosts  int
}

func NewEngine(
	api Gateway,
	tokens TokenStore,
	notifier Notifier,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.IDLimit <= 0 {
		cfg.IDLimit = 100
	}
	return &Engine{
		api:      api,
		tokens:   tokens,
		notifier: notifier,
		feeds:    state.NewRegistry(),
		articles: state.NewArticles(),
		editing:  state.NewMarkers(),
		logger:   logger.With("component", "engine"),
		config:   cfg,
		status:   domain.AuthUnknown,
	}
}

// CheckAuth reloads the persisted token and sets the status from it.
func (e *Engine) CheckAuth(ctx context.Context) (domain.AuthStatus, error) {
	status, _, err := e.checkAuth(ctx)
	return status, err
}

func (e *Engine) checkAuth(ctx context.Context) (domain.AuthStatus, string, error) {
	token, ok, err := e.tokens.Load(ctx)
	if err != nil {
		return e.Status(), "", fmt.Errorf("check auth: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ok {
		e.status = domain.AuthAuthenticated
		e.token = token
	} else {
		e.status = domain.AuthUnauthenticated
		e.token = ""
	}
	return e.status, e.token, nil
}

func (e *Engine) requireAuth(ctx context.Context) (string, error) {
	status, token, err := e.checkAuth(ctx)
	if err != nil {
		return "", err
	}
	if status != domain.AuthAuthenticated {
		e.emit(ctx, domain.NavigateSignal(domain.RouteLogin))
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// Login exchanges credentials for a token. On rejection the login error is
// set and the status left as it was.
func (e *Engine) Login(ctx context.Context, username, password string) error {
	token, err := e.api.ExchangeCredentials(ctx, username, password)
	if err == nil && token == "" {
		err = errors.New("response carried no token")
	}
	if err != nil {
		e.logger.Warn("login failed",
			"status", greader.StatusCode(err),
			"error", err,
		)
		e.setLoginError(ctx, LoginErrorMessage)
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	e.setLoginError(ctx, "")

	if err := e.tokens.Save(ctx, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	e.mu.Lock()
	e.status = domain.AuthAuthenticated
	e.token = token
	e.mu.Unlock()

	e.logger.Info("logged in")
	e.emit(ctx, domain.NavigateSignal(domain.RouteFeedList))
	return nil
}

// Logout forgets the token and empties every collection. In-flight results
// from before the logout are discarded when they arrive. When the token
// cannot be removed the session is left as it was.
func (e *Engine) Logout(ctx context.Context) error {
	if err := e.tokens.Clear(ctx); err != nil {
		e.logger.Warn("clear token failed", "error", err)
		return fmt.Errorf("logout: %w", err)
	}

	e.feeds.Clear()
	gen := e.articles.Reset("")

	e.mu.Lock()
	e.status = domain.AuthUnauthenticated
	e.token = ""
	e.selectionGen = gen
	e.selectedFeed = ""
	e.selectedTitle = ""
	e.mu.Unlock()

	e.logger.Info("logged out")
	e.emit(ctx, domain.NavigateSignal(domain.RouteLogin))
	return nil
}

// RefreshSubscriptions merges the subscription list into the registry, then
// applies unread counts. Failures leave the registry as it was.
func (e *Engine) RefreshSubscriptions(ctx context.Context) error {
	token, err := e.requireAuth(ctx)
	if err != nil {
		return err
	}

	gen := e.feeds.Generation()

	e.setUpdatingList(ctx, true)
	defer e.setUpdatingList(ctx, false)

	subs, err := e.api.ListSubscriptions(ctx, token)
	if err != nil {
		e.logger.Warn("list subscriptions failed", "status", greader.StatusCode(err), "error", err)
		return fmt.Errorf("list subscriptions: %w", err)
	}

	added, ok := e.feeds.Merge(gen, toFeeds(subs))
	if !ok {
		e.logger.Debug("discarding stale subscription list")
		return nil
	}

	counts, err := e.api.ListUnreadCounts(ctx, token)
	if err != nil {
		e.logger.Warn("list unread counts failed", "status", greader.StatusCode(err), "error", err)
		return fmt.Errorf("list unread counts: %w", err)
	}

	applied, ok := e.feeds.ApplyUnreadCounts(gen, toUnreadCounts(counts))
	if !ok {
		e.logger.Debug("discarding stale unread counts")
		return nil
	}

	e.logger.Info("subscriptions refreshed",
		"feeds", e.feeds.Len(),
		"added", added,
		"counts_applied", applied,
	)
	return nil
}

// SelectFeed replaces the article collection with stubs for feedID in server
// order, then fetches the first batch of contents.
func (e *Engine) SelectFeed(ctx context.Context, feedID string) error {
	token, err := e.requireAuth(ctx)
	if err != nil {
		return err
	}

	gen := e.articles.Reset(feedID)

	title := ""
	if f, ok := e.feeds.Get(feedID); ok {
		title = f.Title
	}
	e.mu.Lock()
	if gen > e.selectionGen {
		e.selectionGen = gen
		e.selectedFeed = feedID
		e.selectedTitle = title
	}
	e.mu.Unlock()

	logger := e.logger.With("feed_id", feedID)

	e.setLoadingPosts(ctx, true)
	defer e.setLoadingPosts(ctx, false)

	ids, err := e.api.ListArticleIDs(ctx, token, greader.IDQuery{
		FeedID:     feedID,
		OnlyUnread: e.config.UnreadOnly(),
		Limit:      e.config.IDLimit,
	})
	if err != nil {
		logger.Warn("list article ids failed", "status", greader.StatusCode(err), "error", err)
		return fmt.Errorf("list article ids: %w", err)
	}

	bare := make([]string, 0, len(ids))
	for _, id := range ids {
		bare = append(bare, greader.BareID(id))
	}

	added, ok := e.articles.AddStubs(gen, bare)
	if !ok {
		logger.Debug("discarding stale article ids", "count", len(ids))
		return nil
	}
	logger.Debug("article stubs created", "count", added)

	ids, ok = e.articles.ReserveBatchFor(gen, e.config.BatchSize)
	if !ok {
		logger.Debug("selection replaced before first batch")
		return nil
	}
	if _, err := e.fetchReserved(ctx, gen, ids); err != nil {
		return err
	}
	return nil
}

// FetchBatch materializes the next batch of stubs in collection order. It is
// a no-op when no stubs remain. Results that arrive after a newer selection
// are discarded.
func (e *Engine) FetchBatch(ctx context.Context) (domain.BatchResult, error) {
	gen, ids := e.articles.ReserveBatch(e.config.BatchSize)
	return e.fetchReserved(ctx, gen, ids)
}

// fetchReserved fetches contents for ids reserved under gen and releases
// them afterwards.
func (e *Engine) fetchReserved(ctx context.Context, gen uint64, ids []string) (domain.BatchResult, error) {
	if len(ids) == 0 {
		return domain.BatchResult{}, nil
	}
	defer e.articles.Release(gen, ids)

	result := domain.BatchResult{Requested: len(ids)}

	token, err := e.requireAuth(ctx)
	if err != nil {
		return result, err
	}

	e.setLoadingPosts(ctx, true)
	defer e.setLoadingPosts(ctx, false)

	items, err := e.api.FetchArticleContents(ctx, token, ids)
	if err != nil {
		e.logger.Warn("fetch article contents failed",
			"status", greader.StatusCode(err),
			"requested", len(ids),
			"error", err,
		)
		return result, fmt.Errorf("fetch article contents: %w", err)
	}

	applied, dropped, ok := e.articles.Materialize(gen, toContents(items))
	if !ok {
		e.logger.Debug("discarding stale article contents", "count", len(items))
		result.Stale = true
		return result, nil
	}

	result.Applied = applied
	result.Dropped = dropped
	if dropped > 0 {
		e.logger.Warn("content records without a matching stub", "dropped", dropped)
	}
	return result, nil
}

// ToggleRead sets the read state remotely and, only once the server accepts
// it, locally. A second toggle for the same id while one is in flight is
// rejected with ErrEditInProgress.
func (e *Engine) ToggleRead(ctx context.Context, articleID string, read bool) error {
	if !e.editing.Add(articleID) {
		return ErrEditInProgress
	}
	defer e.editing.Remove(articleID)

	token, err := e.requireAuth(ctx)
	if err != nil {
		return err
	}

	if _, ok := e.articles.Get(articleID); !ok {
		return ErrArticleNotFound
	}

	if err := e.api.SetReadState(ctx, token, articleID, read); err != nil {
		e.logger.Warn("set read state failed",
			"article_id", articleID,
			"status", greader.StatusCode(err),
			"error", err,
		)
		return fmt.Errorf("set read state: %w", err)
	}

	if !e.articles.SetRead(articleID, read) {
		e.logger.Debug("article left the collection during edit", "article_id", articleID)
	}
	return nil
}

// UserInfo returns the remote account behind the current token.
func (e *Engine) UserInfo(ctx context.Context) (domain.UserInfo, error) {
	token, err := e.requireAuth(ctx)
	if err != nil {
		return domain.UserInfo{}, err
	}

	info, err := e.api.UserInfo(ctx, token)
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("user info: %w", err)
	}
	return domain.UserInfo{
		UserID:    info.UserID,
		UserName:  info.UserName,
		ProfileID: info.UserProfileID,
		Email:     info.UserEmail,
	}, nil
}

func (e *Engine) Feeds() FeedView {
	return e.feeds
}

func (e *Engine) Articles() ArticleView {
	return e.articles
}

func (e *Engine) Status() domain.AuthStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) LoginError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loginError
}

// SelectedFeed returns the id and display title of the latest selection.
func (e *Engine) SelectedFeed() (string, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedFeed, e.selectedTitle
}

func (e *Engine) IsUpdatingList() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updatingList > 0
}

func (e *Engine) IsLoadingPosts() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadingPosts > 0
}

func (e *Engine) IsEditing(articleID string) bool {
	return e.editing.Has(articleID)
}

// Editing returns the ids with a read-state change in flight.
func (e *Engine) Editing() []string {
	return e.editing.IDs()
}

func (e *Engine) Stats() domain.SyncStats {
	total, fetched, unread := e.articles.Counts()
	feedID, _ := e.SelectedFeed()
	return domain.SyncStats{
		Status:       e.Status(),
		SelectedFeed: feedID,
		Feeds:        e.feeds.Len(),
		Articles:     total,
		Fetched:      fetched,
		Unread:       unread,
		Editing:      e.editing.Len(),
	}
}

func (e *Engine) setLoginError(ctx context.Context, message string) {
	e.mu.Lock()
	e.loginError = message
	e.mu.Unlock()

	e.emit(ctx, domain.ErrorSignal(message))
}

func (e *Engine) setUpdatingList(ctx context.Context, active bool) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	changed := bumpCounter(&e.updatingList, active)
	e.mu.Unlock()

	if changed {
		e.emit(ctx, domain.LoadingSignal(domain.FlagListUpdating, active))
	}
}

func (e *Engine) setLoadingPosts(ctx context.Context, active bool) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	changed := bumpCounter(&e.loadingPosts, active)
	e.mu.Unlock()

	if changed {
		e.emit(ctx, domain.LoadingSignal(domain.FlagPostsLoading, active))
	}
}

// bumpCounter adjusts a busy counter and reports whether the derived flag
// flipped.
func bumpCounter(n *int, active bool) bool {
	if active {
		*n++
		return *n == 1
	}
	if *n == 0 {
		return false
	}
	*n--
	return *n == 0
}

func (e *Engine) emit(ctx context.Context, signal domain.Signal) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(context.WithoutCancel(ctx), signal); err != nil {
		e.logger.Warn("notify failed", "kind", signal.Kind, "error", err)
	}
}

func toFeeds(subs []greader.Subscription) []domain.Feed {
	feeds := make([]domain.Feed, 0, len(subs))
	for _, s := range subs {
		feeds = append(feeds, domain.Feed{
			ID:      greader.BareID(s.ID),
			Title:   s.Title,
			IconURL: greader.IconURL(s.IconURL),
		})
	}
	return feeds
}

func toUnreadCounts(counts []greader.UnreadCount) []domain.UnreadCount {
	out := make([]domain.UnreadCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, domain.UnreadCount{
			FeedID: greader.BareID(c.ID),
			Count:  int(c.Count),
		})
	}
	return out
}

func toContents(items []greader.Item) []domain.ArticleContent {
	contents := make([]domain.ArticleContent, 0, len(items))
	for _, item := range items {
		contents = append(contents, domain.ArticleContent{
			ID:          greader.BareID(item.ID),
			Title:       item.Title,
			Content:     item.Summary.Content,
			Author:      item.Author,
			URL:         item.AlternateURL(),
			PublishedAt: item.PublishedAt(),
		})
	}
	return contents
}
