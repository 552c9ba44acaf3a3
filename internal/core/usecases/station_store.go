package usecases

import (
	"sync"

	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/core/ports"
	"github.com/samirrijal/molbubble/internal/pkg/geometry"
)

// MaxStations bounds a count announcement. Larger announcements are
// treated as malformed and dropped.
const MaxStations = 4096

// StationStore owns the station table, the by-distance display order and
// the readiness flags. Every exported method holds the store lock for its
// whole duration, presenter callbacks included.
type StationStore struct {
	mu        sync.Mutex
	presenter ports.Presenter

	stations []domain.Station
	sorted   []int  // display rank -> table slot
	awaiting []bool // slot still expects its detail record
	pending  domain.Pending
	location domain.Coordinates

	selected int // table slot, -1 when nothing is selected
	cursor   int // display rank of selected
}

// Selection is the focused station and where it currently sits.
type Selection struct {
	Rank    int            `json:"rank"`
	Slot    int            `json:"slot"`
	Station domain.Station `json:"station"`
}

// Status is a consistent snapshot of the query surface.
type Status struct {
	Count        int                `json:"count"`
	Pending      domain.Pending     `json:"pending"`
	Location     domain.Coordinates `json:"location"`
	Selected     int                `json:"selected"`
	CompassReady bool               `json:"compass_ready"`
}

// NewStationStore creates an empty store. presenter may be nil.
func NewStationStore(presenter ports.Presenter) *StationStore {
	if presenter == nil {
		presenter = nopPresenter{}
	}
	return &StationStore{
		presenter: presenter,
		pending:   domain.InitialPending(),
		selected:  -1,
		cursor:    -1,
	}
}

// Resize handles a station count announcement. The same count while
// records are still pending restarts the whole set; a different count
// discards the table.
func (s *StationStore) Resize(n int) bool {
	if n < 0 || n > MaxStations {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resize(n)
	s.presenter.RefreshIcons(s.pending)
	s.presenter.RefreshList()
	return true
}

func (s *StationStore) resize(n int) {
	if n == len(s.stations) {
		if s.pending.Stations > 0 {
			s.pending.Stations = n
			for i := range s.awaiting {
				s.awaiting[i] = true
			}
		}
		return
	}

	s.stations = make([]domain.Station, n)
	s.sorted = make([]int, n)
	s.awaiting = make([]bool, n)
	for i := range s.sorted {
		s.sorted[i] = i
		s.awaiting[i] = true
	}
	s.pending.Stations = n

	if s.selected >= 0 {
		s.selected, s.cursor = -1, -1
		s.presenter.SetSelection(-1)
	}
}

// ApplyStationFields applies a detail record to the station at index.
// Indices outside the table are ignored. A station counts as populated
// only while it has a non-empty name.
func (s *StationStore) ApplyStationFields(index int, fields []domain.StationFieldUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.stations) {
		return false
	}
	st := &s.stations[index]
	for _, f := range fields {
		switch f.Field {
		case domain.FieldName:
			st.Name = truncateName(f.Text)
		case domain.FieldX:
			st.Coords.X = int16(f.Value)
		case domain.FieldY:
			st.Coords.Y = int16(f.Value)
		case domain.FieldRacks:
			st.Racks = uint8(f.Value)
		}
	}
	st.Populated = st.Name != ""

	last := index == len(s.stations)-1
	if s.awaiting[index] {
		s.awaiting[index] = false
		s.pending.Stations--
		s.presenter.RefreshIcons(s.pending)
		last = last || s.pending.Stations == 0
	}

	if !s.pending.Location {
		s.updateStation(index)
	}
	if last {
		s.recomputeAll()
	}
	s.presenter.RefreshList()
	if index == s.selected {
		s.presenter.RefreshCompass(*st)
	}
	return true
}

// ApplyBulkBikes assigns bike counts to consecutive stations from start,
// stopping at the end of the table. The bikes flag is cleared on every
// call, even when the counts do not reach every station.
func (s *StationStore) ApplyBulkBikes(start int, bikes []byte) bool {
	if start < 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range bikes {
		slot := start + i
		if slot >= len(s.stations) {
			break
		}
		s.stations[slot].Bikes = b
	}
	s.pending.Bikes = false
	s.presenter.RefreshIcons(s.pending)
	s.presenter.RefreshList()
	return true
}

// ApplyBikeUpdate applies an update payload as sent on the wire: the first
// byte is the start index and the remaining bytes are the bike counts.
func (s *StationStore) ApplyBikeUpdate(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	return s.ApplyBulkBikes(int(payload[0]), payload[1:])
}

// ApplyLocation records the user's position and recomputes all stations.
func (s *StationStore) ApplyLocation(c domain.Coordinates) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.location = c
	s.pending.Location = false
	s.recomputeAll()
	s.presenter.RefreshIcons(s.pending)
	s.presenter.RefreshList()
	if s.selected >= 0 {
		s.updateStation(s.selected)
		s.presenter.RefreshCompass(s.stations[s.selected])
	}
}

// Select focuses the station at the given display rank.
func (s *StationStore) Select(rank int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rank < 0 || rank >= len(s.sorted) {
		return false
	}
	s.selected = s.sorted[rank]
	s.cursor = rank
	s.presenter.SetSelection(rank)
	return true
}

// Step moves the selection by delta ranks, clamped to the table. With no
// selection the nearest station is selected.
func (s *StationStore) Step(delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sorted) == 0 {
		return false
	}
	rank := 0
	if s.selected >= 0 {
		rank = min(max(s.cursor+delta, 0), len(s.sorted)-1)
	}
	s.selected = s.sorted[rank]
	s.cursor = rank
	s.presenter.SetSelection(rank)
	s.presenter.RefreshCompass(s.stations[s.selected])
	return true
}

// Count returns the size of the station table.
func (s *StationStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stations)
}

// StationAt returns the station at a display rank.
func (s *StationStore) StationAt(rank int) (domain.Station, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rank < 0 || rank >= len(s.sorted) {
		return domain.Station{}, false
	}
	return s.stations[s.sorted[rank]], true
}

// Stations returns every station in display order.
func (s *StationStore) Stations() []domain.Station {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Station, len(s.sorted))
	for rank, slot := range s.sorted {
		out[rank] = s.stations[slot]
	}
	return out
}

// Selected returns the focused station, if any.
func (s *StationStore) Selected() (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected < 0 {
		return Selection{Rank: -1, Slot: -1}, false
	}
	return Selection{Rank: s.cursor, Slot: s.selected, Station: s.stations[s.selected]}, true
}

// Pending returns the readiness flags.
func (s *StationStore) Pending() domain.Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// LastKnown returns the last reported user position.
func (s *StationStore) LastKnown() domain.Coordinates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// CompassReady reports whether distances and bearings can be trusted.
func (s *StationStore) CompassReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compassReady()
}

func (s *StationStore) compassReady() bool {
	return s.pending.Stations == 0 && !s.pending.Location
}

// Status returns the query surface in one consistent read.
func (s *StationStore) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Count:        len(s.stations),
		Pending:      s.pending,
		Location:     s.location,
		Selected:     s.cursor,
		CompassReady: s.compassReady(),
	}
}

func (s *StationStore) updateStation(slot int) {
	if s.pending.Location {
		return
	}
	st := &s.stations[slot]
	st.Distance = geometry.Distance(s.location, st.Coords)
	st.Bearing = geometry.Bearing(s.location, st.Coords)
}

// truncateName fits a name into the station name buffer, replacing the
// tail with an ellipsis without splitting a multi-byte character.
func truncateName(src string) string {
	if len(src)+1 < domain.MaxStationNameLength {
		return src
	}
	l := domain.MaxStationNameLength - 4
	for l > 0 && src[l]&0x80 != 0 {
		l--
	}
	return src[:l] + "…"
}

type nopPresenter struct{}

func (nopPresenter) RefreshList()                  {}
func (nopPresenter) RefreshIcons(domain.Pending)   {}
func (nopPresenter) RefreshCompass(domain.Station) {}
func (nopPresenter) SetSelection(int)              {}

// table returns a copy of the stations in slot order.
func (s *StationStore) table() []domain.Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Station(nil), s.stations...)
}

// restore resizes to len(table) and installs the populated entries,
// counting each of them as arrived.
func (s *StationStore) restore(table []domain.Station) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resize(len(table))
	for i, st := range table {
		if !st.Populated {
			continue
		}
		s.stations[i] = st
		if s.awaiting[i] {
			s.awaiting[i] = false
			s.pending.Stations--
		}
	}
	s.presenter.RefreshIcons(s.pending)
	s.presenter.RefreshList()
}
