package fintoc

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	// ProductMovements is the only product requested by link intents.
	ProductMovements = "movements"
	// HolderIndividual is the only holder type requested by link intents.
	HolderIndividual = "individual"
	// DefaultCountry is used when a link intent is created without a country.
	DefaultCountry = "cl"
	// DefaultCurrency is reported by summaries when no account carries a currency.
	DefaultCurrency = "CLP"

	DefaultMovementsLimit = 50
	MaxMovementsLimit     = 200
)

// LinkIntent is a started, not yet completed, bank connection.
type LinkIntent struct {
	ID          string `json:"id"`
	Object      string `json:"object,omitempty"`
	WidgetToken string `json:"widget_token"`
	Country     string `json:"country,omitempty"`
	Product     string `json:"product,omitempty"`
	HolderType  string `json:"holder_type,omitempty"`
	Status      string `json:"status,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type linkIntentRequest struct {
	Country    string          `json:"country"`
	Product    string          `json:"product"`
	HolderType string          `json:"holder_type"`
	User       *linkIntentUser `json:"user,omitempty"`
}

type linkIntentUser struct {
	ID string `json:"id"`
}

// Link is a completed bank connection. LinkToken is the permanent reference
// used to list accounts.
type Link struct {
	ID          string       `json:"id"`
	Object      string       `json:"object,omitempty"`
	LinkToken   string       `json:"link_token"`
	AccessToken string       `json:"access_token,omitempty"`
	Status      string       `json:"status,omitempty"`
	Username    string       `json:"username,omitempty"`
	HolderType  string       `json:"holder_type,omitempty"`
	Mode        string       `json:"mode,omitempty"`
	Institution *Institution `json:"institution,omitempty"`
	Accounts    []Account    `json:"accounts,omitempty"`
	CreatedAt   string       `json:"created_at,omitempty"`

	// Degraded is set when the provider returned neither a link token nor an
	// access token and the bare link id had to stand in for the token.
	Degraded bool `json:"-"`
	// Raw is the provider payload as received.
	Raw json.RawMessage `json:"-"`
}

type Institution struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Account is a read-only bank account reachable through a Link.
type Account struct {
	ID           string         `json:"id"`
	Object       string         `json:"object,omitempty"`
	Name         string         `json:"name,omitempty"`
	OfficialName string         `json:"official_name,omitempty"`
	Number       string         `json:"number,omitempty"`
	HolderID     string         `json:"holder_id,omitempty"`
	HolderName   string         `json:"holder_name,omitempty"`
	Type         string         `json:"type,omitempty"`
	Currency     string         `json:"currency,omitempty"`
	Balance      *Balance       `json:"balance,omitempty"`
	RefreshedAt  string         `json:"refreshed_at,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type Balance struct {
	Available decimal.Decimal `json:"available"`
	Current   decimal.Decimal `json:"current"`
	Limit     decimal.Decimal `json:"limit"`
	Currency  string          `json:"currency,omitempty"`
}

// Movement is a single transaction belonging to an Account.
type Movement struct {
	ID              string          `json:"id"`
	Object          string          `json:"object,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency,omitempty"`
	Description     string          `json:"description,omitempty"`
	PostDate        string          `json:"post_date,omitempty"`
	TransactionDate string          `json:"transaction_date,omitempty"`
	Type            string          `json:"type,omitempty"`
	ReferenceID     string          `json:"reference_id,omitempty"`
	Pending         bool            `json:"pending,omitempty"`
}

// MovementsOptions bounds a movements request. Since and Until are
// inclusive YYYY-MM-DD dates passed through to the provider unmodified.
type MovementsOptions struct {
	Limit int
	Since string
	Until string
}

// Summary is derived from a link's accounts, never fetched directly.
type Summary struct {
	LinkToken     string          `json:"link_token"`
	TotalBalance  decimal.Decimal `json:"total_balance"`
	Currency      string          `json:"currency"`
	AccountsCount int             `json:"accounts_count"`
	Accounts      []Account       `json:"accounts"`
	// MixedCurrencies is set when accounts disagree on currency. TotalBalance
	// is then a plain sum across currencies and Currency is the last one seen.
	MixedCurrencies bool `json:"mixed_currencies"`
}

// EffectiveLimit returns the movements limit actually sent upstream.
func EffectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultMovementsLimit
	}
	return min(limit, MaxMovementsLimit)
}

// Summarize folds accounts into a Summary.
func Summarize(linkToken string, accounts []Account) *Summary {
	summary := &Summary{
		LinkToken:     linkToken,
		TotalBalance:  decimal.Zero,
		Currency:      DefaultCurrency,
		AccountsCount: len(accounts),
		Accounts:      accounts,
	}
	if summary.Accounts == nil {
		summary.Accounts = []Account{}
	}

	seen := ""
	for _, acc := range accounts {
		if acc.Balance == nil {
			continue
		}
		summary.TotalBalance = summary.TotalBalance.Add(acc.Balance.Current)
		if cur := acc.Balance.Currency; cur != "" {
			if seen != "" && seen != cur {
				summary.MixedCurrencies = true
			}
			seen = cur
			summary.Currency = cur
		}
	}
	return summary
}
