package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("tavily")

	if GetErrorCode(err) != ErrUpstreamError {
		t.Fatalf("expected code %s, got %s", ErrUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestIsConfiguration(t *testing.T) {
	t.Parallel()

	cfgErr := NewError(ErrConfiguration, "missing api key")
	if !IsConfiguration(cfgErr) {
		t.Fatalf("expected configuration error to be detected")
	}
	if IsConfiguration(NewError(ErrProviderUnavailable, "down")) {
		t.Fatalf("provider outage must not classify as configuration error")
	}
	if IsConfiguration(errors.New("plain")) {
		t.Fatalf("plain error must not classify as configuration error")
	}
}
