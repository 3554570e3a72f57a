package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kjstillabower/rent-lookup-service/internal/circuitbreaker"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrorCategoryTimeout},
		{name: "wrapped deadline", err: fmt.Errorf("request timeout: %w", context.DeadlineExceeded), want: ErrorCategoryTimeout},
		{name: "not configured", err: ErrNotConfigured, want: ErrorCategoryNotConfigured},
		{name: "invalid key", err: fmt.Errorf("%w: HTTP 401", ErrInvalidAPIKey), want: ErrorCategoryInvalidAPIKey},
		{name: "rate limited", err: ErrRateLimited, want: ErrorCategoryRateLimited},
		{name: "upstream 5xx", err: fmt.Errorf("exhausted retries: %w", ErrUpstreamFailure), want: ErrorCategoryUpstream5xx},
		{name: "circuit open", err: circuitbreaker.ErrOpen, want: ErrorCategoryCircuitOpen},
		{name: "parsing", err: fmt.Errorf("%w: bad json", ErrMalformedResponse), want: ErrorCategoryParsing},
		{name: "timeout string", err: errors.New("i/o timeout"), want: ErrorCategoryTimeout},
		{name: "network string", err: errors.New("connection refused"), want: ErrorCategoryNetwork},
		{name: "unknown", err: errors.New("boom"), want: ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
