// Package upload hands persisted session artifacts to remote storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ayusman/podoscan/internal/metrics"
)

// Uploader accepts a local artifact path and the session folder it belongs to.
type Uploader interface {
	Upload(ctx context.Context, localPath, folder string) error
}

// Func adapts a plain function to the Uploader interface.
type Func func(ctx context.Context, localPath, folder string) error

// Upload calls f.
func (f Func) Upload(ctx context.Context, localPath, folder string) error {
	return f(ctx, localPath, folder)
}

// Discard accepts every artifact and does nothing. It stands in when uploads
// are disabled.
var Discard Uploader = Func(func(context.Context, string, string) error { return nil })

// ErrAttemptsExhausted wraps the last error once every attempt failed.
var ErrAttemptsExhausted = errors.New("upload attempts exhausted")

// Retrying retries a failed upload with exponential backoff.
type Retrying struct {
	next        Uploader
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps next. maxAttempts below 1 is treated as 1.
func NewRetrying(next Uploader, maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{
		next:        next,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Upload tries the wrapped uploader up to maxAttempts times. The delay before
// attempt n+1 is baseDelay * 2^(n-1).
func (r *Retrying) Upload(ctx context.Context, localPath, folder string) error {
	_, err := r.UploadWithAttempts(ctx, localPath, folder)
	return err
}

// UploadWithAttempts is Upload that also reports how many attempts ran.
func (r *Retrying) UploadWithAttempts(ctx context.Context, localPath, folder string) (int, error) {
	ctx, span := otel.Tracer("upload").Start(ctx, "Retrying.Upload", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("artifact.path", localPath),
		attribute.String("session.folder", folder),
	)

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.baseDelay << (attempt - 2)
			metrics.UploadRetriesTotal.Inc()
			if err := r.sleep(ctx, delay); err != nil {
				return attempt - 1, fmt.Errorf("upload %s: %w", localPath, err)
			}
		}

		lastErr = r.next.Upload(ctx, localPath, folder)
		if lastErr == nil {
			span.SetAttributes(attribute.Int("upload.attempts", attempt))
			return attempt, nil
		}

		r.logger.Warn("upload attempt failed",
			zap.String("path", localPath),
			zap.String("folder", folder),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
	}

	span.RecordError(lastErr)
	return r.maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, r.maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
