package chips

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jengzang/regrowth-dataset/internal/metrics"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
)

// Defaults of the chip downloader
const (
	DefaultWorkers  = 25
	DefaultLimit    = 5000
	DefaultAttempts = 10
	DefaultBuffer   = 2000 // metres around each point
	DefaultTimeout  = 2 * time.Minute
)

// Outcome status values
const (
	StatusDownloaded = "downloaded"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// Options configures a Downloader
type Options struct {
	OutDir     string
	Suffix     string
	Resolution float64 // output pixel size in CRS units
	CRS        string  // output CRS, EPSG:3857 by default
	Workers    int
	Limit      int
	Attempts   int
	Timeout    time.Duration // per attempt
	Buffer     float64       // metres

	// InitialInterval is the first retry delay; it doubles per attempt
	InitialInterval time.Duration
}

// Outcome is the result of one chip
type Outcome struct {
	Index    int    `json:"index"`
	Path     string `json:"path"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// Downloader fetches chips from an ImageSource with a fixed worker pool
type Downloader struct {
	source ImageSource
	client *http.Client
	ledger Ledger
	opts   Options
}

// NewDownloader fills unset options with defaults. A nil ledger means an
// in-memory one.
func NewDownloader(source ImageSource, ledger Ledger, client *http.Client, opts Options) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	if opts.CRS == "" {
		opts.CRS = spatial.WebMercator.String()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	return &Downloader{source: source, client: client, ledger: ledger, opts: opts}
}

// FileName returns tile_<index zero-padded to the digits of total><suffix>.tif
func FileName(index, total int, suffix string) string {
	width := len(strconv.Itoa(total))
	return fmt.Sprintf("tile_%0*d%s.tif", width, index, suffix)
}

type job struct {
	index int
	point orb.Point // lon/lat
}

// Run downloads a chip around each of the first Limit points. points are in
// crs and converted to lon/lat. A failed chip does not stop the others; the
// outcomes come back in point order.
func (d *Downloader) Run(ctx context.Context, points []orb.Point, crs spatial.CRS) ([]Outcome, error) {
	if d.source == nil {
		return nil, ErrNoImageSource
	}
	if d.opts.Resolution <= 0 {
		return nil, fmt.Errorf("chip resolution must be positive, got %v", d.opts.Resolution)
	}
	if err := os.MkdirAll(d.opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	t, err := spatial.NewTransformer(crs, spatial.WGS84)
	if err != nil {
		return nil, err
	}

	total := len(points)
	n := min(total, d.opts.Limit)
	jobs := make(chan job)
	outcomes := make([]Outcome, n)

	var wg sync.WaitGroup
	for w := 0; w < d.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				outcomes[j.index] = d.fetch(ctx, j, total)
			}
		}()
	}

	var convErr error
	for i := 0; i < n; i++ {
		g, err := spatial.Reproject(points[i], t)
		if err != nil {
			convErr = err
			break
		}
		select {
		case jobs <- job{index: i, point: g.(orb.Point)}:
		case <-ctx.Done():
			convErr = ctx.Err()
		}
		if convErr != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	if convErr != nil {
		return nil, convErr
	}

	var downloaded, skipped, failed int
	for _, o := range outcomes {
		switch o.Status {
		case StatusDownloaded:
			downloaded++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	log.Printf("[ChipDownloader] %d points (%d total): %d downloaded, %d skipped, %d failed",
		n, total, downloaded, skipped, failed)
	return outcomes, nil
}

func (d *Downloader) fetch(ctx context.Context, j job, total int) Outcome {
	name := FileName(j.index, total, d.opts.Suffix)
	out := Outcome{Index: j.index, Path: filepath.Join(d.opts.OutDir, name)}

	key := d.ledgerKey(out.Path, j.point)
	if done, err := d.ledger.Done(ctx, key); err == nil && done && fileExists(out.Path) {
		out.Status = StatusSkipped
		metrics.ChipDownloadsTotal.WithLabelValues(StatusSkipped).Inc()
		return out
	}

	res := d.opts.Resolution
	req := ExportRequest{
		Index:        j.index,
		Region:       spatial.BufferBounds(j.point, d.opts.Buffer),
		CRS:          d.opts.CRS,
		CRSTransform: [6]float64{res, 0, 0, 0, -res, 0},
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.InitialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 10 * time.Minute
	b.MaxElapsedTime = 0

	op := func() error {
		out.Attempts++
		return d.attempt(ctx, req, out.Path)
	}
	notify := func(err error, wait time.Duration) {
		metrics.ChipRetriesTotal.Inc()
		log.Printf("[ChipDownloader] %s attempt %d failed, retrying in %v: %v", name, out.Attempts, wait, err)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.opts.Attempts-1)), ctx), notify)
	if err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
		metrics.ChipDownloadsTotal.WithLabelValues(StatusFailed).Inc()
		log.Printf("[ChipDownloader] %s failed after %d attempts: %v", name, out.Attempts, err)
		return out
	}

	if err := d.ledger.Mark(ctx, key); err != nil {
		log.Printf("[ChipDownloader] Warning: failed to record %s: %v", name, err)
	}
	out.Status = StatusDownloaded
	metrics.ChipDownloadsTotal.WithLabelValues(StatusDownloaded).Inc()
	return out
}

// ledgerKey identifies a chip by its absolute output path, export grid and centre
func (d *Downloader) ledgerKey(path string, center orb.Point) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return fmt.Sprintf("%s|%s|%g|%.7f,%.7f", path, d.opts.CRS, d.opts.Resolution, center[0], center[1])
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// attempt downloads one chip to path through a temporary file
func (d *Downloader) attempt(ctx context.Context, req ExportRequest, path string) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	u, err := d.source.ExportURL(ctx, req)
	if err != nil {
		return err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := d.client.Do(hreq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("export returned %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return backoff.Permanent(err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return backoff.Permanent(errors.Join(err, os.Remove(tmp)))
	}
	return nil
}
