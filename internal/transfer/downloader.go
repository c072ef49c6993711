package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"ClassPresenter/internal/logger"
	"ClassPresenter/internal/tube"
)

type State int32

const (
	Idle State = iota
	ListingChannels
	AwaitingDataChannel
	Downloading
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case ListingChannels:
		return "listing-channels"
	case AwaitingDataChannel:
		return "awaiting-data-channel"
	case Downloading:
		return "downloading"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}
	return "idle"
}

var errNoOffer = errors.New("transfer: no bundle offered yet")

// Downloader fetches the instructor's bundle, retrying forever with a fixed
// delay until it lands or ctx ends.
type Downloader struct {
	log    *logger.Logger
	tube   tube.Transport
	client *http.Client
	dest   string
	retry  time.Duration
	onDone func(path string)

	state    atomic.Int32
	attempts atomic.Int32
}

// NewDownloader writes the bundle to dest and calls onDone exactly once with
// dest when it is complete.
func NewDownloader(log *logger.Logger, t tube.Transport, dest string, retry time.Duration, onDone func(path string)) *Downloader {
	if log == nil {
		log = logger.NewNop()
	}
	if retry <= 0 {
		retry = 5 * time.Second
	}
	return &Downloader{
		log:    log.With("component", "transfer-downloader"),
		tube:   t,
		client: &http.Client{},
		dest:   dest,
		retry:  retry,
		onDone: onDone,
	}
}

func (d *Downloader) State() State { return State(d.state.Load()) }

// Attempts counts download attempts, successful or not.
func (d *Downloader) Attempts() int { return int(d.attempts.Load()) }

func (d *Downloader) set(s State) {
	if State(d.state.Swap(int32(s))) != s {
		d.log.Debug("transfer state", "state", s.String())
	}
}

func (d *Downloader) Run(ctx context.Context) error {
	for {
		d.set(ListingChannels)
		offer, err := d.findOffer(ctx)
		switch {
		case errors.Is(err, errNoOffer):
			d.set(AwaitingDataChannel)
		case err != nil:
			d.log.Warn("listing data channels failed", "error", err)
			d.set(Failed)
		default:
			d.set(Downloading)
			d.attempts.Add(1)
			if err := d.fetch(ctx, offer.URL); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.log.Warn("bundle download failed, retrying", "url", offer.URL, "error", err, "retry", d.retry)
				d.set(Failed)
			} else {
				d.set(Complete)
				d.log.Info("bundle downloaded", "path", d.dest)
				if d.onDone != nil {
					d.onDone(d.dest)
				}
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.retry):
		}
	}
}

// findOffer prefers the session initiator's offer.
func (d *Downloader) findOffer(ctx context.Context) (tube.Offer, error) {
	offers, err := d.tube.ListDataChannels(ctx)
	if err != nil {
		return tube.Offer{}, err
	}
	initiator := d.tube.Initiator()
	var fallback *tube.Offer
	for i := range offers {
		o := offers[i]
		if o.Service != Service {
			continue
		}
		if o.From == initiator {
			return o, nil
		}
		if fallback == nil {
			fallback = &offers[i]
		}
	}
	if fallback != nil && initiator == "" {
		return *fallback, nil
	}
	return tube.Offer{}, errNoOffer
}

// fetch streams into a temp file beside dest; partial files are discarded.
func (d *Downloader) fetch(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(d.dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(d.dest), ".bundle-*")
	if err != nil {
		return err
	}
	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr == nil && resp.ContentLength >= 0 && n != resp.ContentLength {
		copyErr = fmt.Errorf("short body: %d of %d bytes", n, resp.ContentLength)
	}
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp.Name())
		if copyErr != nil {
			return copyErr
		}
		return closeErr
	}
	if err := os.Rename(tmp.Name(), d.dest); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
