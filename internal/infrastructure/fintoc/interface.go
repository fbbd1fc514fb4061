package fintoc

import (
	"context"
)

// ClientInterface defines the methods required from the Fintoc API client
type ClientInterface interface {
	Configured() bool
	PublicKey() string
	CreateLinkIntent(ctx context.Context, country, userID string) (*LinkIntent, error)
	ExchangeTokenForLink(ctx context.Context, exchangeToken string) (*Link, error)
	GetLinkAccounts(ctx context.Context, linkToken string) ([]Account, error)
	GetAccountMovements(ctx context.Context, accountID string, opts MovementsOptions) ([]Movement, error)
	GetLinkSummary(ctx context.Context, linkToken string) (*Summary, error)
	VerifyLink(ctx context.Context, linkToken string) (*Link, bool, error)
}
