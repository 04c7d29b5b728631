package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/ayusman/podoscan/internal/metrics"
	"github.com/ayusman/podoscan/internal/store"
)

// attemptReporter is implemented by uploaders that retry.
type attemptReporter interface {
	UploadWithAttempts(ctx context.Context, localPath, folder string) (int, error)
}

// dispatchUploads hands every artifact to the uploader on its own goroutine.
// Results are logged and recorded; they never reach the loop.
func (c *Capturer) dispatchUploads(ctx context.Context, folder string, artifacts []store.Artifact) {
	base := context.WithoutCancel(ctx)
	for _, a := range artifacts {
		c.uploads.Add(1)
		go func(path string) {
			defer c.uploads.Done()

			uctx, cancel := context.WithTimeout(base, c.uploadTimeout)
			defer cancel()

			attempts := 1
			var err error
			if r, ok := c.uploader.(attemptReporter); ok {
				attempts, err = r.UploadWithAttempts(uctx, path, folder)
			} else {
				err = c.uploader.Upload(uctx, path, folder)
			}

			log := c.logger.With(zap.String("folder", folder), zap.String("path", path), zap.Int("attempts", attempts))
			if err != nil {
				metrics.UploadsTotal.WithLabelValues("failed").Inc()
				log.Error("upload failed", zap.Error(err))
			} else {
				metrics.UploadsTotal.WithLabelValues("uploaded").Inc()
				log.Debug("upload finished")
			}

			if c.store == nil {
				return
			}
			if err != nil {
				err = c.store.Artifacts().MarkFailed(path, err, attempts)
			} else {
				err = c.store.Artifacts().MarkUploaded(path, attempts)
			}
			if err != nil {
				log.Warn("failed to record upload status", zap.Error(err))
			}
		}(a.Path)
	}
}
