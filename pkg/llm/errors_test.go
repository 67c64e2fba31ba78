package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantRetry   bool
		wantNonRety bool
	}{
		{name: "nil", err: nil},
		{name: "context canceled", err: context.Canceled, wantNonRety: true},
		{name: "context deadline exceeded", err: context.DeadlineExceeded, wantNonRety: true},
		{name: "unavailable status", err: status.Error(codes.Unavailable, "down"), wantRetry: true},
		{name: "resource exhausted status", err: status.Error(codes.ResourceExhausted, "throttled"), wantRetry: true},
		{name: "invalid argument status", err: status.Error(codes.InvalidArgument, "bad"), wantNonRety: true},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), wantRetry: true},
		{name: "unknown error", err: errors.New("boom"), wantNonRety: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			if tt.wantRetry {
				assert.ErrorIs(t, got, ErrRetryable)
			}
			if tt.wantNonRety {
				assert.ErrorIs(t, got, ErrNonRetryable)
			}
		})
	}
}
