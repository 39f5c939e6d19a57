// Package download executes batches of resolved resources, writing each one
// to its destination path strictly in sequence with a fixed courtesy pause
// between attempts.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemirror/internal/metrics"
	"github.com/JakeFAU/sitemirror/internal/pipeline"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultTimeout = 5 * time.Second
	DefaultPacing  = 5 * time.Second
)

// Config controls the executor.
type Config struct {
	// Timeout bounds each stage of a fetch: dialing, the TLS handshake,
	// waiting for response headers and every read of the body. A slow
	// transfer succeeds as long as data keeps arriving.
	Timeout time.Duration
	// Pacing is the pause after every fetch attempt.
	Pacing    time.Duration
	UserAgent string
}

// Summary counts what happened to one batch.
type Summary struct {
	Downloaded int
	Failed     int
	Skipped    int
}

// Executor performs paced, sequential fetch-and-write of download tasks.
type Executor struct {
	cfg    Config
	client *http.Client
	fs     pipeline.FileSystem
	pauser Pauser
	logger *zap.Logger
}

// Option customizes an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the default client. Its overall Timeout is
// cleared; Config.Timeout applies per stage instead.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		e.client = c
	}
}

// WithPauser replaces the timer-based pauser.
func WithPauser(p Pauser) Option {
	return func(e *Executor) {
		e.pauser = p
	}
}

// WithFileSystem replaces the existence probe.
func WithFileSystem(fs pipeline.FileSystem) Option {
	return func(e *Executor) {
		e.fs = fs
	}
}

// New builds an Executor.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Pacing < 0 {
		cfg.Pacing = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		cfg:    cfg,
		client: &http.Client{},
		fs:     pipeline.OSFileSystem{},
		pauser: &TimerPauser{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	client := *e.client
	client.Timeout = 0
	client.Transport = withStageTimeouts(client.Transport, cfg.Timeout)
	e.client = &client
	return e
}

// withStageTimeouts bounds connection setup and the wait for headers.
// Transports other than *http.Transport are left untouched; the idle read
// deadline in copyResource still applies to them.
func withStageTimeouts(rt http.RoundTripper, timeout time.Duration) http.RoundTripper {
	var base *http.Transport
	switch t := rt.(type) {
	case nil:
		base = http.DefaultTransport.(*http.Transport).Clone()
	case *http.Transport:
		base = t.Clone()
	default:
		return rt
	}
	base.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	base.TLSHandshakeTimeout = timeout
	base.ResponseHeaderTimeout = timeout
	return base
}

// Execute processes batch in order. Fetch failures are logged and counted;
// filesystem failures and context cancellation abort the batch.
func (e *Executor) Execute(ctx context.Context, batch []pipeline.DownloadTask) (Summary, error) {
	var sum Summary
	e.logger.Info("processing batch", zap.Int("resources", len(batch)))
	for _, task := range batch {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("download batch: %w", err)
		}

		exists, err := e.fs.Exists(task.Dest)
		if err != nil {
			return sum, err
		}
		if exists {
			e.logger.Warn("already exists", zap.String("dest", task.Dest))
			metrics.ObserveDownload(task.Source.String(), metrics.StatusSkipped, 0)
			sum.Skipped++
			continue
		}

		written, err := e.fetch(ctx, task)
		switch {
		case errors.Is(err, pipeline.ErrFilesystem):
			return sum, err
		case err != nil && ctx.Err() != nil:
			return sum, fmt.Errorf("download batch: %w", ctx.Err())
		case err != nil:
			e.logger.Error("download failed", zap.Stringer("url", task.Source), zap.String("dest", task.Dest), zap.Error(err))
			metrics.ObserveDownload(task.Source.String(), metrics.StatusFailed, 0)
			sum.Failed++
		default:
			e.logger.Info("downloaded", zap.String("dest", task.Dest), zap.Int64("bytes", written))
			metrics.ObserveDownload(task.Source.String(), metrics.StatusSuccess, written)
			sum.Downloaded++
		}

		e.pauser.Pause(ctx, e.cfg.Pacing)
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("download batch: %w", err)
		}
	}
	return sum, nil
}

// fetch downloads one task into a temporary sibling and renames it into
// place only after the whole body was copied.
func (e *Executor) fetch(ctx context.Context, task pipeline.DownloadTask) (int64, error) {
	dir := filepath.Dir(task.Dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("%w: create directory %s: %w", pipeline.ErrFilesystem, dir, err)
	}

	tmpPath := partialPath(task.Dest)
	// #nosec G304 -- destination is derived from the configured root and sanitized names.
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", pipeline.ErrFilesystem, tmpPath, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if cerr := tmp.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			e.logger.Debug("close partial file", zap.String("path", tmpPath), zap.Error(cerr))
		}
		if rerr := os.Remove(tmpPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			e.logger.Warn("remove partial file", zap.String("path", tmpPath), zap.Error(rerr))
		}
	}()

	written, err := e.copyResource(ctx, task.Source.String(), tmp)
	if err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("%w: close %s: %w", pipeline.ErrFilesystem, tmpPath, err)
	}
	if err := os.Rename(tmpPath, task.Dest); err != nil {
		return 0, fmt.Errorf("%w: rename %s: %w", pipeline.ErrFilesystem, task.Dest, err)
	}
	committed = true
	return written, nil
}

// ErrStalled reports a fetch that received no data within Config.Timeout.
var ErrStalled = errors.New("no data received within timeout")

func (e *Executor) copyResource(ctx context.Context, rawURL string, dst io.Writer) (int64, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	watchdog := time.AfterFunc(e.cfg.Timeout, func() { cancel(ErrStalled) })
	defer watchdog.Stop()

	n, err := e.transfer(ctx, rawURL, dst, watchdog)
	if err != nil && errors.Is(context.Cause(ctx), ErrStalled) {
		return n, fmt.Errorf("get %s: %w after %s", rawURL, ErrStalled, e.cfg.Timeout)
	}
	return n, err
}

// transfer streams the resource into dst, pushing the watchdog back after
// every read that returned data.
func (e *Executor) transfer(ctx context.Context, rawURL string, dst io.Writer, watchdog *time.Timer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	if e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			e.logger.Debug("Failed to close resource response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("get %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	w := &trackingWriter{w: dst}
	body := &idleReader{r: resp.Body, watchdog: watchdog, timeout: e.cfg.Timeout}
	n, err := io.Copy(w, body)
	if err != nil {
		if w.err != nil {
			return n, fmt.Errorf("%w: write: %w", pipeline.ErrFilesystem, w.err)
		}
		return n, fmt.Errorf("read body: %w", err)
	}
	return n, nil
}

// trackingWriter remembers write-side failures so they can be told apart
// from network read failures during io.Copy.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}

// idleReader resets the watchdog whenever a read makes progress.
type idleReader struct {
	r        io.Reader
	watchdog *time.Timer
	timeout  time.Duration
}

func (i *idleReader) Read(p []byte) (int, error) {
	n, err := i.r.Read(p)
	if n > 0 {
		i.watchdog.Reset(i.timeout)
	}
	return n, err
}

func partialPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), fmt.Sprintf(".%s.%s.part", filepath.Base(dest), uuid.NewString()))
}
