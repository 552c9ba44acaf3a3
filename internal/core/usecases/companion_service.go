package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/core/ports"
	"github.com/samirrijal/molbubble/internal/pkg/geospatial"
)

// DefaultChunkSize is the number of bike counts carried by one update message.
const DefaultChunkSize = 120

// ErrChunkStart is returned when the table is too long for every update
// chunk to address its start index in a single byte.
var ErrChunkStart = errors.New("update chunk start exceeds one byte")

// CompanionService turns the public station feed into watch messages.
type CompanionService struct {
	feed      ports.StationFeed
	out       ports.MessagePublisher
	center    domain.GeoPoint
	projector *geospatial.Projector
	chunkSize int
	maxRadius float64

	mu       sync.Mutex
	stations []domain.BikeStation
}

// NewCompanionService creates a new CompanionService. Stations farther
// than maxRadius meters from center are left out; zero keeps them all.
func NewCompanionService(
	feed ports.StationFeed,
	out ports.MessagePublisher,
	center domain.GeoPoint,
	chunkSize int,
	maxRadius float64,
) *CompanionService {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &CompanionService{
		feed:      feed,
		out:       out,
		center:    center,
		projector: geospatial.NewProjector(center),
		chunkSize: chunkSize,
		maxRadius: maxRadius,
	}
}

// Update polls the feed and sends the bike counts. The first update of a
// session also announces the count and sends every station record.
func (s *CompanionService) Update(ctx context.Context, first bool) (int, error) {
	list, err := s.feed.FetchStations(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch stations: %w", err)
	}

	stations := make([]domain.BikeStation, 0, len(list))
	for _, st := range list {
		if s.maxRadius > 0 && !geospatial.WithinRadius(s.center.Lat, s.center.Lon, st.Lat, st.Lon, s.maxRadius) {
			continue
		}
		stations = append(stations, st)
	}
	sort.SliceStable(stations, func(i, j int) bool { return lessID(stations[i].ID, stations[j].ID) })

	s.mu.Lock()
	s.stations = stations
	s.mu.Unlock()

	if first {
		msg := domain.Message{domain.IntTuple(domain.KeyNumStations, int32(len(stations)))}
		if err := s.out.Publish(ctx, "station count", msg, false); err != nil {
			return 0, fmt.Errorf("publish station count: %w", err)
		}
	}
	bikesErr := s.publishBikes(ctx, stations)
	if bikesErr != nil && !errors.Is(bikesErr, ErrChunkStart) {
		return 0, bikesErr
	}
	if first {
		if err := s.publishStations(ctx, stations); err != nil {
			return 0, err
		}
	}
	return len(stations), bikesErr
}

// PublishLocation projects the user's position and sends it ahead of any
// queued station data.
func (s *CompanionService) PublishLocation(ctx context.Context, p domain.GeoPoint) error {
	c := s.projector.ToPlane(p)
	msg := domain.Message{
		domain.IntTuple(domain.KeyX, int32(c.X)),
		domain.IntTuple(domain.KeyY, int32(c.Y)),
	}
	if err := s.out.Publish(ctx, "position", msg, true); err != nil {
		return fmt.Errorf("publish position: %w", err)
	}
	return nil
}

// Stations returns the station list of the last poll, sorted by id.
func (s *CompanionService) Stations() []domain.BikeStation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.BikeStation(nil), s.stations...)
}

func (s *CompanionService) publishBikes(ctx context.Context, stations []domain.BikeStation) error {
	for i := 0; i < len(stations); i += s.chunkSize {
		if i > math.MaxUint8 {
			return fmt.Errorf("%w: %d stations", ErrChunkStart, len(stations))
		}
		end := min(len(stations), i+s.chunkSize)
		update := make([]byte, 0, end-i+1)
		update = append(update, byte(i))
		for _, st := range stations[i:end] {
			update = append(update, byte(min(max(st.Bikes, 0), math.MaxUint8)))
		}
		kind := fmt.Sprintf("update #%d", i/s.chunkSize)
		if err := s.out.Publish(ctx, kind, domain.Message{domain.BytesTuple(domain.KeyUpdate, update)}, false); err != nil {
			return fmt.Errorf("publish %s: %w", kind, err)
		}
	}
	return nil
}

func (s *CompanionService) publishStations(ctx context.Context, stations []domain.BikeStation) error {
	for i, st := range stations {
		c := s.projector.ToPlane(domain.GeoPoint{Lat: st.Lat, Lon: st.Lon})
		msg := domain.Message{
			domain.IntTuple(domain.KeyIndex, int32(i)),
			domain.StringTuple(domain.KeyName, st.Name),
			domain.IntTuple(domain.KeyX, int32(c.X)),
			domain.IntTuple(domain.KeyY, int32(c.Y)),
			domain.IntTuple(domain.KeyRacks, int32(st.Spaces)),
		}
		kind := fmt.Sprintf("station #%d", i)
		if err := s.out.Publish(ctx, kind, msg, false); err != nil {
			return fmt.Errorf("publish %s: %w", kind, err)
		}
	}
	return nil
}

// lessID orders numeric ids numerically and falls back to text order.
func lessID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
