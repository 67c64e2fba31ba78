package llm

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrRetryable wraps transport-level failures a caller may retry after
// backoff (connection drop, timeout, transient gRPC status).
var ErrRetryable = errors.New("llm: retryable transport error")

// ErrNonRetryable wraps protocol-level failures retrying cannot fix
// (malformed request, provider rejected it, unsupported model).
var ErrNonRetryable = errors.New("llm: non-retryable error")

// ClassifyError reports whether err should be retried: context errors
// and protocol-level gRPC statuses are not retryable, connection-level
// failures are.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrNonRetryable, err)
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
			return errors.Join(ErrRetryable, err)
		case codes.Canceled:
			return errors.Join(ErrNonRetryable, err)
		default:
			return errors.Join(ErrNonRetryable, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errors.Join(ErrNonRetryable, err)
		}
		return errors.Join(ErrRetryable, err)
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "broken pipe", "connection closed"} {
		if strings.Contains(msg, s) {
			return errors.Join(ErrRetryable, err)
		}
	}

	return errors.Join(ErrNonRetryable, err)
}
