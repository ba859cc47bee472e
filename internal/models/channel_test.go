package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validChannel() *Channel {
	ch := NewChannel()
	ch.ID = "bbc_world"
	ch.Name = "BBC World News"
	ch.Country = "UK"
	ch.Language = "English"
	ch.Category = "News"
	ch.StreamURL = "https://example.com/streams/bbc.m3u8"
	return ch
}

func TestNewChannelDefaults(t *testing.T) {
	ch := NewChannel()

	assert.True(t, ch.IsActive)
	assert.False(t, ch.CreatedAt.IsZero())
	assert.False(t, ch.UpdatedAt.IsZero())
	assert.Nil(t, ch.LastCheckedAt)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validChannel().Validate())

	tests := []struct {
		name   string
		mutate func(*Channel)
	}{
		{"missing id", func(c *Channel) { c.ID = "" }},
		{"missing name", func(c *Channel) { c.Name = "" }},
		{"empty stream url", func(c *Channel) { c.StreamURL = "" }},
		{"relative stream url", func(c *Channel) { c.StreamURL = "streams/bbc.m3u8" }},
		{"ftp stream url", func(c *Channel) { c.StreamURL = "ftp://example.com/bbc.m3u8" }},
		{"scheme only", func(c *Channel) { c.StreamURL = "https://" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := validChannel()
			tt.mutate(ch)
			assert.Error(t, ch.Validate())
		})
	}
}

func TestValidateStreamURLError(t *testing.T) {
	ch := validChannel()
	ch.StreamURL = "not-a-url"
	assert.ErrorIs(t, ch.Validate(), ErrInvalidStreamURL)
}
