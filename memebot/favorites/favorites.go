// Package favorites persists the memes each user chose to keep.
//
// Every mutating operation loads the whole document from a Repository,
// applies the change, and saves the whole document back. A store-wide mutex
// serialises those cycles so concurrent users never lose each other's writes.
package favorites

import (
	"context"
	"errors"
	"time"
)

// DefaultLimit is the maximum number of favorites kept per user.
const DefaultLimit = 50

var (
	// ErrDuplicate is returned when the user already has a favorite with the same url and captions.
	ErrDuplicate = errors.New("favorites: duplicate entry")
	// ErrIndexOutOfRange is returned by RemoveAt for an index outside the user's list.
	ErrIndexOutOfRange = errors.New("favorites: index out of range")
	// ErrUnknownUser is returned by Clear for a user that never saved anything.
	ErrUnknownUser = errors.New("favorites: unknown user")
)

// Meme is a single saved favorite.
type Meme struct {
	URL    string `json:"url"`
	Top    string `json:"top"`
	Bottom string `json:"bottom"`
	// CreatedAt is kept as written. New entries use RFC 3339; older documents
	// may hold "2006-01-02 15:04:05-07:00" or an empty string.
	CreatedAt  string `json:"created_at"`
	IsUploaded bool   `json:"is_uploaded,omitempty"`
}

var createdLayouts = []string{time.RFC3339, "2006-01-02 15:04:05Z07:00", "2006-01-02 15:04:05.999999Z07:00"}

// Created parses CreatedAt, reporting false when it is empty or unrecognized.
func (m Meme) Created() (time.Time, bool) {
	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, m.CreatedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SameAs reports whether m and other share the uniqueness key.
func (m Meme) SameAs(other Meme) bool {
	return m.URL == other.URL && m.Top == other.Top && m.Bottom == other.Bottom
}

// UserFavorites is the per-user record of the persisted document.
type UserFavorites struct {
	Favorites []Meme `json:"favorites"`
}

// Document maps a user id, rendered as a decimal string, to that user's favorites.
type Document map[string]UserFavorites

// Repository loads and saves the whole favorites document.
type Repository interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}
