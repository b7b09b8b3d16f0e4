package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSourceURL(t *testing.T) {
	h := NewSeparateHandler(nil, []string{"youtube.com", "youtu.be", "www.youtube.com", "m.youtube.com"})

	tests := []struct {
		url  string
		want bool
	}{
		{"https://youtube.com/watch?v=abc", true},
		{"https://www.youtube.com/watch?v=abc", true},
		{"http://m.youtube.com/watch?v=abc", true},
		{"https://youtu.be/abc", true},
		{"https://YOUTUBE.COM/watch?v=abc", true},
		{"https://evil.com/watch?v=abc", false},
		{"https://youtube.com.evil.com/watch?v=abc", false},
		{"ftp://youtube.com/watch?v=abc", false},
		{"file:///etc/passwd", false},
		{"not a url", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, h.validSourceURL(tt.url), "url %q", tt.url)
	}
}
