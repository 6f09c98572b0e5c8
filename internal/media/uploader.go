// Package media turns uploaded files into public object store URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/vidhub/backend/internal/config"
	"github.com/vidhub/backend/internal/logging"
	"github.com/vidhub/backend/internal/metrics"
)

// Kind groups content types the uploader distinguishes.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindOther Kind = "other"
)

// ObjectStore persists an object and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// Prober reads the playback duration of a local media file.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Asset describes an uploaded file.
type Asset struct {
	URL         string
	Duration    float64
	ContentType string
	Kind        Kind
	Size        int64
}

// Uploader probes local files and pushes them to the object store.
type Uploader struct {
	store   ObjectStore
	prober  Prober
	breaker *gobreaker.CircuitBreaker[string]
}

// NewUploader builds an Uploader whose store calls go through a circuit breaker
// that opens after cfg.BreakerFailures consecutive failures.
func NewUploader(store ObjectStore, prober Prober, cfg config.MediaConfig) *Uploader {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "object-store",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.MediaBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &Uploader{store: store, prober: prober, breaker: breaker}
}

// Upload stores the file at localPath and removes it afterwards, whether or
// not the upload succeeded. When accept is non-empty the detected kind must be
// one of them.
func (u *Uploader) Upload(ctx context.Context, localPath string, accept ...Kind) (asset Asset, err error) {
	if strings.TrimSpace(localPath) == "" {
		return Asset{}, ErrNoFile
	}
	defer func() {
		if rmErr := os.Remove(localPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logging.FromContext(ctx).Warn("remove temp media file", "path", localPath, "error", rmErr)
		}
	}()

	ctx, span := logging.StartSpan(ctx, "media.upload")
	start := time.Now()
	kind := KindOther
	defer func() {
		metrics.RecordMediaUpload(string(kind), time.Since(start), err)
		span.Fail(err)
		span.End()
	}()

	info, err := os.Stat(localPath)
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %v", ErrNoFile, err)
	}

	mtype, err := mimetype.DetectFile(localPath)
	if err != nil {
		return Asset{}, fmt.Errorf("detect content type: %w", err)
	}
	kind = kindOf(mtype)
	if len(accept) > 0 && !accepts(accept, kind) {
		return Asset{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	asset = Asset{ContentType: mtype.String(), Kind: kind, Size: info.Size()}

	if kind == KindVideo && u.prober != nil {
		asset.Duration, err = u.prober.Duration(ctx, localPath)
		if err != nil {
			return Asset{}, err
		}
	}

	key := uuid.NewString() + mtype.Extension()
	asset.URL, err = u.breaker.Execute(func() (string, error) {
		f, err := os.Open(localPath)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return u.store.Put(ctx, key, asset.ContentType, f)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Asset{}, ErrUnavailable
		}
		return Asset{}, err
	}

	logging.FromContext(ctx).Info("media uploaded",
		"kind", kind,
		"content_type", asset.ContentType,
		"size", asset.Size,
		"url", asset.URL,
	)
	return asset, nil
}

func kindOf(mtype *mimetype.MIME) Kind {
	for m := mtype; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "video/"), strings.HasPrefix(m.String(), "audio/"):
			return KindVideo
		case strings.HasPrefix(m.String(), "image/"):
			return KindImage
		}
	}
	return KindOther
}

func accepts(kinds []Kind, kind Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
