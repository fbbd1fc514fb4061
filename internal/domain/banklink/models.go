// Package banklink sequences the Fintoc calls that connect a bank account
// and read its data, keeping per-user progress in the web session.
package banklink

import (
	"errors"

	"bancolink/internal/infrastructure/fintoc"
	"bancolink/internal/infrastructure/session"
)

// State is the per-session position in the linking flow.
type State int

const (
	StateUnlinked State = iota
	StateConnecting
	StateLinked
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLinked:
		return "linked"
	default:
		return "unlinked"
	}
}

// StateOf derives the state from what the session holds. A failed step
// never stores a link token, so errors read as Unlinked.
func StateOf(d *session.Data) State {
	switch {
	case d.LinkToken != "":
		return StateLinked
	case d.LinkIntentID != "":
		return StateConnecting
	default:
		return StateUnlinked
	}
}

var (
	ErrNotConfigured   = errors.New("bank aggregation is not configured")
	ErrNotLinked       = errors.New("no bank account linked")
	ErrNotConnecting   = errors.New("no bank connection in progress")
	ErrLinkNotFound    = errors.New("bank link not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidInput    = errors.New("invalid input")
)

type inputError struct {
	msg string
}

func invalidInput(msg string) error {
	return &inputError{msg: msg}
}

func (e *inputError) Error() string {
	return "invalid input: " + e.msg
}

func (e *inputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Flash categories.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashError   = "error"
)

const (
	msgNotConfigured  = "Bank connection is not available: Fintoc is not configured."
	msgConnectFailed  = "Error creating bank connection. Please try again."
	msgExchangeFailed = "Could not complete the bank connection. Please try again."
	msgConnected      = "Bank account connected successfully!"
	msgDegradedLink   = "Bank connected, but the provider returned an incomplete link reference. Some data may be unavailable."
	msgSummaryFailed  = "Could not load your bank accounts right now."
	msgMixedCurrency  = "Your accounts use different currencies; the total balance mixes them."
	msgLinkGone       = "Your bank connection is no longer valid. Please connect again."
	msgDisconnected   = "Bank account disconnected."
)

// UserMessage returns the text shown to the user for an error returned by Service.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "Fintoc not configured"
	case errors.Is(err, ErrNotLinked):
		return "No bank account linked"
	case errors.Is(err, ErrNotConnecting):
		return "No bank connection in progress"
	case errors.Is(err, ErrLinkNotFound):
		return "Link not found"
	case errors.Is(err, ErrAccountNotFound):
		return "Account not found"
	case errors.Is(err, ErrInvalidInput):
		var ie *inputError
		if errors.As(err, &ie) {
			return ie.msg
		}
		return "Invalid input"
	case fintoc.KindOf(err) == fintoc.KindTransport:
		return "Could not reach the bank data provider"
	default:
		return "Bank data provider error"
	}
}

// ConnectInfo is what the client-side widget needs to start.
type ConnectInfo struct {
	LinkIntentID string
	WidgetToken  string
	PublicKey    string
	Country      string
}

// DashboardView is computed fresh on every render.
type DashboardView struct {
	State      State
	Identity   *session.Identity
	Configured bool
	Country    string
	LinkID     string
	Summary    *fintoc.Summary
}
