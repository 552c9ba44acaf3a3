package usecases

// RecomputeAll recomputes distance and bearing for every station and
// re-sorts them. It does nothing until all station records and the user
// location have arrived.
func (s *StationStore) RecomputeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeAll()
}

// Resort reorders the display index by distance once the location is known.
func (s *StationStore) Resort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resort()
}

func (s *StationStore) recomputeAll() {
	if !s.compassReady() {
		return
	}
	for slot := range s.stations {
		s.updateStation(slot)
	}
	s.resort()
}

func (s *StationStore) resort() {
	if s.pending.Location {
		return
	}
	s.sortRange(0, len(s.sorted)-1)
	s.repairSelection()
}

// sortRange is an in-place quicksort over sorted[start:end+1] with the
// middle element as pivot. Stations without a record never go left of
// the pivot, and a pivot without a record lets every populated station
// pass, so unpopulated entries collect at the high end.
func (s *StationStore) sortRange(start, end int) {
	if end <= start {
		return
	}
	mid := (start + end) / 2
	pivot := s.stations[s.sorted[mid]]
	s.swap(mid, end)

	chg := start
	for i := start; i < end; i++ {
		st := &s.stations[s.sorted[i]]
		if st.Populated && (!pivot.Populated || st.Distance < pivot.Distance) {
			s.swap(i, chg)
			chg++
		}
	}
	s.swap(chg, end)

	s.sortRange(start, chg-1)
	s.sortRange(chg+1, end)
}

func (s *StationStore) swap(a, b int) {
	s.sorted[a], s.sorted[b] = s.sorted[b], s.sorted[a]
}

// repairSelection moves the selection cursor to wherever the selected
// station ended up.
func (s *StationStore) repairSelection() {
	if s.selected < 0 {
		return
	}
	if s.cursor >= 0 && s.cursor < len(s.sorted) && s.sorted[s.cursor] == s.selected {
		return
	}
	for rank, slot := range s.sorted {
		if slot == s.selected {
			s.cursor = rank
			s.presenter.SetSelection(rank)
			return
		}
	}
}
