package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	tests := []struct {
		name   string
		err    error
		kind   error
		status int
	}{
		{"not found", NotFound("items.get", "item %q", "abc"), ErrNotFound, http.StatusNotFound},
		{"invalid", Invalid("claims.assess", "claim id is empty"), ErrInvalidInput, http.StatusBadRequest},
		{"unavailable", Unavailable("detector.yolo", cause), ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"rate limited", RateLimited("matching.run", "try again later"), ErrRateLimited, http.StatusTooManyRequests},
		{"wrapped", fmt.Errorf("resolve: %w", NotFound("claims.list", "item x")), ErrNotFound, http.StatusNotFound},
		{"plain", errors.New("boom"), nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.kind != nil && !errors.Is(tt.err, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
			if got := HTTPStatus(tt.err); got != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := Unavailable("embedder.image", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through errors.Is")
	}
	if got := err.Error(); got != "embedder.image: external service unavailable: timeout" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("wrap: %w", NotFound("store.item", "item %q", "x"))) {
		t.Error("expected wrapped NotFound to match")
	}
	if IsNotFound(Invalid("op", "bad")) {
		t.Error("invalid input is not a miss")
	}
}
