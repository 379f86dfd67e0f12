package tasks

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/diogo464/sonar-sub000/internal/catalog"
)

// scrobbleBatchSize bounds one drain pass; workers loop until the
// unsubmitted set is empty.
const scrobbleBatchSize = 100

// Listen is a fully hydrated scrobble handed to a scrobbler.
type Listen struct {
	Scrobble catalog.Scrobble
	Track    catalog.Track
	Album    catalog.Album
	Artist   catalog.Artist
	User     catalog.User
}

// Scrobbler submits listens to an external listen-tracking service.
type Scrobbler interface {
	Name() string
	Scrobble(ctx context.Context, listen Listen) error
}

// Dispatcher runs one worker per scrobbler. Workers block on the
// catalog's wake channel, drain the scrobbler's unsubmitted set on each
// wake, and record submissions so a scrobble is sent at most once per
// scrobbler. Failed submissions stay unsubmitted for the next cycle.
type Dispatcher struct {
	catalog    *catalog.Catalog
	scrobblers []Scrobbler
	logger     *log.Logger
}

// NewDispatcher creates a dispatcher for the given scrobblers.
func NewDispatcher(c *catalog.Catalog, logger *log.Logger, scrobblers ...Scrobbler) *Dispatcher {
	return &Dispatcher{catalog: c, scrobblers: scrobblers, logger: logger}
}

// Run blocks until ctx is cancelled, dispatching scrobbles as they are
// created. The catalog's wake channel is single-consumer, so Run fans
// each wake out to every worker.
func (d *Dispatcher) Run(ctx context.Context) {
	wakes := make([]chan struct{}, len(d.scrobblers))
	for i := range wakes {
		wakes[i] = make(chan struct{}, 1)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.catalog.ScrobbleWake():
				for _, wake := range wakes {
					select {
					case wake <- struct{}{}:
					default:
					}
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i, scrobbler := range d.scrobblers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx, scrobbler, wakes[i])
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, scrobbler Scrobbler, wake <-chan struct{}) {
	// drain once on startup to pick up scrobbles created while the
	// dispatcher was down
	d.drain(ctx, scrobbler)
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			d.drain(ctx, scrobbler)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context, scrobbler Scrobbler) {
	for {
		scrobbles, err := d.catalog.ListUnsubmittedScrobbles(ctx, scrobbler.Name(), 0, scrobbleBatchSize)
		if err != nil {
			d.logger.Error("failed to list unsubmitted scrobbles", "scrobbler", scrobbler.Name(), "err", err)
			return
		}
		if len(scrobbles) == 0 {
			return
		}
		for _, scrobble := range scrobbles {
			if ctx.Err() != nil {
				return
			}
			if err := d.submit(ctx, scrobbler, scrobble); err != nil {
				// left unsubmitted; the next wake retries
				d.logger.Warn("scrobble submission failed", "scrobbler", scrobbler.Name(), "scrobble", scrobble.ID, "err", err)
				return
			}
		}
		if len(scrobbles) < scrobbleBatchSize {
			return
		}
	}
}

func (d *Dispatcher) submit(ctx context.Context, scrobbler Scrobbler, scrobble catalog.Scrobble) error {
	listen, err := d.hydrate(ctx, scrobble)
	if err != nil {
		return err
	}
	if err := scrobbler.Scrobble(ctx, listen); err != nil {
		return err
	}
	return d.catalog.RegisterSubmission(ctx, scrobble.ID, scrobbler.Name())
}

func (d *Dispatcher) hydrate(ctx context.Context, scrobble catalog.Scrobble) (Listen, error) {
	track, err := d.catalog.GetTrack(ctx, scrobble.Track)
	if err != nil {
		return Listen{}, err
	}
	album, err := d.catalog.GetAlbum(ctx, track.Album)
	if err != nil {
		return Listen{}, err
	}
	artist, err := d.catalog.GetArtist(ctx, album.Artist)
	if err != nil {
		return Listen{}, err
	}
	user, err := d.catalog.GetUser(ctx, scrobble.User)
	if err != nil {
		return Listen{}, err
	}
	return Listen{
		Scrobble: scrobble,
		Track:    track,
		Album:    album,
		Artist:   artist,
		User:     user,
	}, nil
}
