package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when the id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Store persists session payloads by id. Implementations must be safe for
// concurrent use; each Get returns a private copy.
type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Put(ctx context.Context, id string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Identity is the verified Google account of the logged-in user.
type Identity struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Flash is a one-shot message shown on the next page render.
type Flash struct {
	Category string `json:"category"` // success | warning | error | info
	Message  string `json:"message"`
}

// Data is everything kept server-side for one browser session.
type Data struct {
	Identity   *Identity `json:"identity,omitempty"`
	OAuthState string    `json:"oauth_state,omitempty"`

	// Connecting
	LinkIntentID string `json:"link_intent_id,omitempty"`
	Country      string `json:"country,omitempty"`

	// Linked
	LinkID    string          `json:"link_id,omitempty"`
	LinkToken string          `json:"link_token,omitempty"`
	Link      json.RawMessage `json:"link,omitempty"`

	Flashes []Flash `json:"flashes,omitempty"`
}

func (d *Data) LoggedIn() bool {
	return d.Identity != nil && d.Identity.SubjectID != ""
}

func (d *Data) AddFlash(category, message string) {
	d.Flashes = append(d.Flashes, Flash{Category: category, Message: message})
}

// PopFlashes returns and clears queued flashes.
func (d *Data) PopFlashes() []Flash {
	flashes := d.Flashes
	d.Flashes = nil
	return flashes
}

// ClearLink forgets both the in-progress intent and any completed link.
func (d *Data) ClearLink() {
	d.LinkIntentID = ""
	d.Country = ""
	d.LinkID = ""
	d.LinkToken = ""
	d.Link = nil
}

// Session is a Data bound to its id for the duration of one request.
type Session struct {
	ID string
	Data

	isNew bool
}

func (s *Session) IsNew() bool {
	return s.isNew
}

type contextKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session loaded by Manager.Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

func encode(data *Data) ([]byte, error) {
	return json.Marshal(data)
}

func decode(raw []byte) (*Data, error) {
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
