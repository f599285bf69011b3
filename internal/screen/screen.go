package screen

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lapaz-movil/transit/internal/geo"
	"github.com/lapaz-movil/transit/internal/mapview"
	"github.com/lapaz-movil/transit/internal/poll"
	"github.com/lapaz-movil/transit/internal/prefs"
	"github.com/lapaz-movil/transit/internal/realtime/gps"
	"github.com/lapaz-movil/transit/internal/reveal"
	"github.com/lapaz-movil/transit/internal/static/catalog"
)

var (
	ErrInvalidFilter = errors.New("invalid transport filter")
	ErrUnknownRoute  = errors.New("unknown route")
	ErrRouteNoShape  = errors.New("route has no coordinates")
)

// PermissionDeniedMessage is shown when the user refused location access
const PermissionDeniedMessage = "Permiso de localización denegado"

// Screen is one mounted map screen. The catalog is fetched once at mount
// and vehicles are polled until Close.
type Screen struct {
	ID string

	prefs  *prefs.Store
	camera *mapview.Camera
	reveal *reveal.Machine
	poller *poll.Poller[gps.VehiclePosition]
	cancel context.CancelFunc
	loaded chan struct{}

	mu             sync.Mutex
	filter         catalog.Filter
	showRoutes     bool
	showGPS        bool
	selected       []string
	categories     []catalog.RouteCategory
	catalogLoading bool
	catalogErr     string
	userLocation   *mapview.Coordinate
	locationErr    string

	subsMu sync.Mutex
	subs   map[int]chan View
	nextID int
	closed atomic.Bool

	now        func() time.Time
	lastActive atomic.Int64 // unix nanoseconds
}

func newScreen(ctx context.Context, id string, deps Dependencies, opts MountOptions) *Screen {
	ctx, cancel := context.WithCancel(ctx)

	s := &Screen{
		ID:             id,
		prefs:          prefs.NewStore(deps.Preferences, opts.DeviceID),
		camera:         mapview.NewCamera(mapview.DefaultRegion),
		reveal:         reveal.NewMachine(),
		cancel:         cancel,
		loaded:         make(chan struct{}),
		showRoutes:     true,
		showGPS:        true,
		catalogLoading: true,
		subs:           make(map[int]chan View),
		now:            deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.touch()
	if opts.HideGPS {
		s.showGPS = false
	}

	s.filter = s.prefs.Restore(ctx)

	var filter func(gps.VehiclePosition) bool
	if opts.IMEI != "" {
		filter = gps.ByIMEI(opts.IMEI)
	}
	s.poller = poll.New(deps.Vehicles, poll.Options[gps.VehiclePosition]{
		Name:      "GPS",
		Interval:  deps.PollInterval,
		Filter:    filter,
		Scheduler: deps.Scheduler,
		Observer:  deps.Observer,
		OnUpdate: func(poll.Snapshot[gps.VehiclePosition]) {
			s.publish(nil)
		},
	})

	go s.loadCatalog(ctx, deps.Catalog)
	s.poller.Start(ctx)

	return s
}

func (s *Screen) loadCatalog(ctx context.Context, loader catalog.Loader) {
	defer close(s.loaded)

	categories, err := loader.Load(ctx)

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return
	}
	s.catalogLoading = false
	if err != nil {
		s.catalogErr = err.Error()
		log.Printf("Screen %s: failed to load route catalog: %v", s.ID, err)
	} else {
		s.categories = categories
	}
	count := catalog.CountRoutes(s.categories)
	s.mu.Unlock()

	if !s.reveal.DataLoaded(err == nil, count) {
		log.Printf("Screen %s: reveal held (routes=%d, err=%v)", s.ID, count, err)
	}
	s.publish(nil)
}

// CatalogLoaded is closed once the catalog load has finished, successfully or not
func (s *Screen) CatalogLoaded() <-chan struct{} {
	return s.loaded
}

// ZoomIn halves the visible span
func (s *Screen) ZoomIn() mapview.Transition {
	t := s.camera.ZoomIn()
	s.publish(&t)
	return t
}

// ZoomOut doubles the visible span
func (s *Screen) ZoomOut() mapview.Transition {
	t := s.camera.ZoomOut()
	s.publish(&t)
	return t
}

// Gesture records the viewport a user pan or pinch ended on. An invalid
// region is rejected and nothing is published.
func (s *Screen) Gesture(r mapview.Region) (mapview.Region, error) {
	region, err := s.camera.OnGesture(r)
	if err != nil {
		return region, err
	}
	s.publish(nil)
	return region, nil
}

// Location applies a device location report. A failed report is kept as
// the location error and returned; it is not retried.
func (s *Screen) Location(report geo.LocationReport) (*mapview.Transition, error) {
	coords, err := geo.Resolve(report)
	if err != nil {
		message := err.Error()
		if errors.Is(err, geo.ErrPermissionDenied) {
			message = PermissionDeniedMessage
		}
		s.mu.Lock()
		s.locationErr = message
		s.mu.Unlock()
		s.publish(nil)
		return nil, err
	}

	loc := mapview.Coordinate{Latitude: coords.Latitude, Longitude: coords.Longitude}
	s.mu.Lock()
	s.userLocation = &loc
	s.locationErr = ""
	s.mu.Unlock()

	t := s.camera.OnLocation(loc)
	s.publish(&t)
	return &t, nil
}

// SetFilter changes the transport filter and persists it
func (s *Screen) SetFilter(ctx context.Context, value string) (catalog.Filter, error) {
	filter, ok := catalog.ParseFilter(value)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilter, value)
	}

	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()

	s.prefs.Save(ctx, filter)
	s.publish(nil)
	return filter, nil
}

// SetGPSVisible shows or hides vehicle markers. Polling continues either way.
func (s *Screen) SetGPSVisible(visible bool) {
	s.mu.Lock()
	s.showGPS = visible
	s.mu.Unlock()
	s.publish(nil)
}

// SetRoutesVisible shows or hides route lines and stations
func (s *Screen) SetRoutesVisible(visible bool) {
	s.mu.Lock()
	s.showRoutes = visible
	s.mu.Unlock()
	s.publish(nil)
}

// ToggleRoute adds or removes a route from the selection and reports
// whether it is now selected. An empty selection shows every route.
func (s *Screen) ToggleRoute(routeID string) (bool, error) {
	s.mu.Lock()
	if _, ok := catalog.FindRoute(s.categories, routeID); !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownRoute, routeID)
	}

	selected := false
	next := make([]string, 0, len(s.selected)+1)
	for _, id := range s.selected {
		if id != routeID {
			next = append(next, id)
		}
	}
	if len(next) == len(s.selected) {
		next = append(next, routeID)
		selected = true
	}
	s.selected = next
	s.mu.Unlock()

	s.publish(nil)
	return selected, nil
}

// ClearRoutes empties the route selection
func (s *Screen) ClearRoutes() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	s.publish(nil)
}

// FocusRoute moves the camera to frame a route
func (s *Screen) FocusRoute(routeID string) (mapview.Transition, error) {
	s.mu.Lock()
	route, ok := catalog.FindRoute(s.categories, routeID)
	s.mu.Unlock()
	if !ok {
		return mapview.Transition{}, fmt.Errorf("%w: %s", ErrUnknownRoute, routeID)
	}

	region, ok := mapview.FitRoute(route)
	if !ok {
		return mapview.Transition{}, fmt.Errorf("%w: %s", ErrRouteNoShape, routeID)
	}
	t := s.camera.FitTo(region)
	s.publish(&t)
	return t, nil
}

// StageComplete reports that the client finished an entrance animation stage
func (s *Screen) StageComplete(stage reveal.Stage) (reveal.State, error) {
	state, err := s.reveal.StageComplete(stage)
	if err != nil {
		return state, err
	}
	s.publish(nil)
	return state, nil
}

// Vehicles returns the latest polled vehicle snapshot
func (s *Screen) Vehicles() poll.Snapshot[gps.VehiclePosition] {
	return s.poller.Snapshot()
}

// Subscribe returns a channel receiving a view after every state change and
// a function to stop receiving. Slow subscribers only see the latest view.
// The channel is closed when the screen closes.
func (s *Screen) Subscribe() (<-chan View, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ch := make(chan View, 1)
	if s.closed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
		// The idle timeout counts from the moment the last viewer left
		s.touch()
	}
}

// Subscribers returns the number of open subscriptions
func (s *Screen) Subscribers() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs)
}

func (s *Screen) touch() {
	s.lastActive.Store(s.now().UnixNano())
}

func (s *Screen) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastActive.Load()))
}

func (s *Screen) publish(t *mapview.Transition) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.closed.Load() || len(s.subs) == 0 {
		return
	}

	s.touch()
	v := s.View()
	v.Transition = t
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			// Replace the unread view with the newer one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Close stops polling and releases subscribers. Nothing is written to the
// screen afterwards.
func (s *Screen) Close() {
	s.subsMu.Lock()
	if s.closed.Swap(true) {
		s.subsMu.Unlock()
		return
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()

	s.poller.Stop()
	s.cancel()
}
