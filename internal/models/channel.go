package models

import (
	"errors"
	"net/url"
	"time"
)

// ErrInvalidStreamURL is returned by Validate when stream_url is not an
// absolute http or https URL.
var ErrInvalidStreamURL = errors.New("stream_url must be an absolute http or https URL")

// Channel represents a row in the 'channels' table: one free-to-air
// broadcastable stream and its metadata.
type Channel struct {
	ID            string     `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Country       string     `db:"country" json:"country"`
	Language      string     `db:"language" json:"language"`
	Category      string     `db:"category" json:"category"`
	StreamURL     string     `db:"stream_url" json:"stream_url"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	LastCheckedAt *time.Time `db:"last_checked_at" json:"last_checked_at,omitempty"`
}

// NewChannel creates a new Channel with default values
func NewChannel() *Channel {
	now := time.Now()
	return &Channel{
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks that the channel has an id, a name and a well-formed
// stream URL. It does not touch the network; reachability is checked
// separately before persistence.
func (c *Channel) Validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	u, err := url.Parse(c.StreamURL)
	if err != nil {
		return ErrInvalidStreamURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidStreamURL
	}
	return nil
}
