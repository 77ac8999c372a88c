package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"reader_sync/internal/domain"
	"reader_sync/internal/greader"
)

type Gateway interface {
	ExchangeCredentials(ctx context.Context, username, password string) (string, error)
	ListSubscriptions(ctx context.Context, token string) ([]greader.Subscription, error)
	ListUnreadCounts(ctx context.Context, token string) ([]greader.UnreadCount, error)
	ListArticleIDs(ctx context.Context, token string, q greader.IDQuery) ([]string, error)
	FetchArticleContents(ctx context.Context, token string, ids []string) ([]greader.Item, error)
	SetReadState(ctx context.Context, token, articleID string, read bool) error
	UserInfo(ctx context.Context, token string) (*greader.UserInfo, error)
}

type TokenStore interface {
	Load(ctx context.Context) (string, bool, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type Notifier interface {
	Notify(ctx context.Context, signal domain.Signal) error
}
