package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	err := NewAPIError("slack", 429, "ratelimited")
	assert.Equal(t, "slack API error (status 429): ratelimited", err.Error())

	err.Err = errors.New("boom")
	assert.Contains(t, err.Error(), "boom")
	assert.ErrorIs(t, err, err.Err)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", ErrRateLimit, true},
		{"wrapped unavailable", fmt.Errorf("post: %w", ErrUnavailable), true},
		{"api 503", NewAPIError("slack", 503, "down"), true},
		{"api 400", NewAPIError("slack", 400, "bad"), false},
		{"not found", ErrProjectNotFound, false},
		{"plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestProjectError(t *testing.T) {
	err := &ProjectError{Project: "Rooftop-A", Component: "alerts", Message: "panic"}
	assert.Equal(t, `alerts: project "Rooftop-A": panic`, err.Error())
}
