package banklink

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"bancolink/internal/infrastructure/fintoc"
	"bancolink/internal/infrastructure/session"
	"bancolink/internal/shared/logging"
)

// Service is stateless; all per-user state lives in the session.Data passed
// to each call. Callers persist the session after a call returns.
type Service struct {
	client         fintoc.ClientInterface
	defaultCountry string
	logger         *zap.Logger
}

func NewService(client fintoc.ClientInterface, defaultCountry string, logger *zap.Logger) *Service {
	if defaultCountry == "" {
		defaultCountry = fintoc.DefaultCountry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, defaultCountry: defaultCountry, logger: logger}
}

func (s *Service) Configured() bool {
	return s.client.Configured()
}

// StartConnect creates a link intent (Unlinked → Connecting). On failure the
// session keeps its previous state and a warning is queued.
func (s *Service) StartConnect(ctx context.Context, d *session.Data, country string) (*ConnectInfo, error) {
	if !s.client.Configured() {
		d.AddFlash(FlashWarning, msgNotConfigured)
		return nil, ErrNotConfigured
	}
	if country == "" {
		country = s.defaultCountry
	}

	var userID string
	if d.Identity != nil {
		userID = d.Identity.SubjectID
	}

	intent, err := s.client.CreateLinkIntent(ctx, country, userID)
	if err != nil {
		s.logger.Error("Failed to start bank connection", zap.String("country", country), zap.Error(err))
		d.AddFlash(FlashError, msgConnectFailed)
		return nil, fmt.Errorf("failed to create link intent: %w", err)
	}

	d.LinkIntentID = intent.ID
	d.Country = country

	s.logger.Info("Bank connection started",
		zap.String("link_intent_id", intent.ID),
		zap.String("country", country),
		zap.String("widget_token", logging.Mask(intent.WidgetToken)),
	)

	return &ConnectInfo{
		LinkIntentID: intent.ID,
		WidgetToken:  intent.WidgetToken,
		PublicKey:    s.client.PublicKey(),
		Country:      country,
	}, nil
}

// CompleteExchange trades the widget's exchange token for a Link
// (Connecting → Linked). Any failure drops the pending intent.
func (s *Service) CompleteExchange(ctx context.Context, d *session.Data, exchangeToken string) (*fintoc.Link, error) {
	if exchangeToken == "" {
		return nil, invalidInput("No exchange token provided")
	}
	if !s.client.Configured() {
		return nil, ErrNotConfigured
	}
	if d.LinkIntentID == "" {
		return nil, ErrNotConnecting
	}

	link, err := s.client.ExchangeTokenForLink(ctx, exchangeToken)
	if err != nil {
		s.logger.Error("Token exchange failed",
			zap.String("link_intent_id", d.LinkIntentID),
			zap.Error(err))
		d.LinkIntentID = ""
		d.AddFlash(FlashError, msgExchangeFailed)
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	s.storeLink(d, link)
	if link.Degraded {
		d.AddFlash(FlashWarning, msgDegradedLink)
	} else {
		d.AddFlash(FlashSuccess, msgConnected)
	}

	s.logger.Info("Bank account linked",
		zap.String("link_id", link.ID),
		zap.Bool("degraded", link.Degraded))
	return link, nil
}

// AcceptLinkID handles the widget callback that reports a link id directly.
// The id is verified with the provider before it is stored.
func (s *Service) AcceptLinkID(ctx context.Context, d *session.Data, linkID, country string) (*fintoc.Link, error) {
	if linkID == "" {
		return nil, invalidInput("No link_id provided")
	}
	if !s.client.Configured() {
		return nil, ErrNotConfigured
	}

	link, found, err := s.client.VerifyLink(ctx, linkID)
	if err != nil {
		s.logger.Error("Failed to verify link", zap.String("link_id", linkID), zap.Error(err))
		return nil, fmt.Errorf("failed to verify link: %w", err)
	}
	if !found {
		s.logger.Warn("Widget reported unknown link", zap.String("link_id", linkID))
		return nil, ErrLinkNotFound
	}

	if link.ID == "" {
		link.ID = linkID
	}
	if country == "" {
		country = s.defaultCountry
	}
	s.storeLink(d, link)
	d.Country = country
	d.AddFlash(FlashSuccess, msgConnected)

	s.logger.Info("Bank account linked from widget callback", zap.String("link_id", link.ID))
	return link, nil
}

// Dashboard fetches a fresh summary when linked. It never fails; problems
// become flashes on the returned session.
func (s *Service) Dashboard(ctx context.Context, d *session.Data) *DashboardView {
	view := &DashboardView{
		State:      StateOf(d),
		Identity:   d.Identity,
		Configured: s.client.Configured(),
		Country:    d.Country,
		LinkID:     d.LinkID,
	}
	if view.State != StateLinked || !view.Configured {
		return view
	}

	summary, err := s.client.GetLinkSummary(ctx, d.LinkToken)
	if err != nil {
		s.logger.Warn("Failed to load dashboard summary", zap.String("link_id", d.LinkID), zap.Error(err))
		d.AddFlash(FlashWarning, msgSummaryFailed)
		return view
	}
	if summary.MixedCurrencies {
		d.AddFlash(FlashInfo, msgMixedCurrency)
	}
	view.Summary = summary
	return view
}

// Accounts lists the linked accounts, always fetched live.
func (s *Service) Accounts(ctx context.Context, d *session.Data) ([]fintoc.Account, error) {
	if err := s.requireLinked(d); err != nil {
		return []fintoc.Account{}, err
	}

	accounts, err := s.client.GetLinkAccounts(ctx, d.LinkToken)
	if err != nil {
		return []fintoc.Account{}, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Movements lists movements of one of the linked accounts. accountID must
// belong to the session's link.
func (s *Service) Movements(ctx context.Context, d *session.Data, accountID string, opts fintoc.MovementsOptions) ([]fintoc.Movement, error) {
	if accountID == "" {
		return []fintoc.Movement{}, invalidInput("No account_id provided")
	}

	accounts, err := s.Accounts(ctx, d)
	if err != nil {
		return []fintoc.Movement{}, err
	}
	owned := slices.ContainsFunc(accounts, func(a fintoc.Account) bool { return a.ID == accountID })
	if !owned {
		s.logger.Warn("Movements requested for account outside the link",
			zap.String("account_id", accountID),
			zap.String("link_id", d.LinkID))
		return []fintoc.Movement{}, ErrAccountNotFound
	}

	movements, err := s.client.GetAccountMovements(ctx, accountID, opts)
	if err != nil {
		if fintoc.IsNotFound(err) {
			return []fintoc.Movement{}, ErrAccountNotFound
		}
		return []fintoc.Movement{}, fmt.Errorf("failed to list movements: %w", err)
	}
	return movements, nil
}

// Refresh re-verifies the link and recomputes its summary. A link the
// provider no longer knows is dropped from the session.
func (s *Service) Refresh(ctx context.Context, d *session.Data) (*fintoc.Summary, error) {
	if err := s.requireLinked(d); err != nil {
		return nil, err
	}

	link, found, err := s.client.VerifyLink(ctx, d.LinkToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify link: %w", err)
	}
	if !found {
		s.logger.Warn("Linked bank no longer exists at provider", zap.String("link_id", d.LinkID))
		d.ClearLink()
		d.AddFlash(FlashWarning, msgLinkGone)
		return nil, ErrLinkNotFound
	}
	if len(link.Raw) > 0 {
		d.Link = link.Raw
	}

	summary, err := s.client.GetLinkSummary(ctx, d.LinkToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh accounts: %w", err)
	}

	s.logger.Info("Bank data refreshed",
		zap.String("link_id", d.LinkID),
		zap.Int("accounts", summary.AccountsCount))
	return summary, nil
}

// Disconnect forgets the link locally. The provider-side link is untouched.
func (s *Service) Disconnect(d *session.Data) {
	linkID := d.LinkID
	d.ClearLink()
	d.AddFlash(FlashInfo, msgDisconnected)
	s.logger.Info("Bank account disconnected", zap.String("link_id", linkID))
}

func (s *Service) requireLinked(d *session.Data) error {
	if !s.client.Configured() {
		return ErrNotConfigured
	}
	if StateOf(d) != StateLinked {
		return ErrNotLinked
	}
	return nil
}

func (s *Service) storeLink(d *session.Data, link *fintoc.Link) {
	d.LinkID = link.ID
	d.LinkToken = link.LinkToken
	d.Link = link.Raw
	d.LinkIntentID = ""
}

// IsClientError reports whether err was caused by the caller rather than
// the provider or configuration.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotLinked) ||
		errors.Is(err, ErrNotConnecting)
}
