package services

import (
	"sort"
	"strconv"
	"strings"

	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// Leg is one hop between two consecutive stops
type Leg struct {
	From string
	To   string
}

// Segment is a validated [From, To] range on a train's ordered stop list
type Segment struct {
	From      string
	To        string
	FromIndex int
	ToIndex   int
	stations  []string
}

// Legs returns the consecutive station pairs the segment covers
func (s Segment) Legs() []Leg {
	legs := make([]Leg, 0, s.ToIndex-s.FromIndex)
	for i := s.FromIndex; i < s.ToIndex; i++ {
		legs = append(legs, Leg{From: s.stations[i], To: s.stations[i+1]})
	}
	return legs
}

// LegStarts returns the departure station of every covered leg
func (s Segment) LegStarts() []string {
	starts := make([]string, 0, s.ToIndex-s.FromIndex)
	for i := s.FromIndex; i < s.ToIndex; i++ {
		starts = append(starts, s.stations[i])
	}
	return starts
}

// Overlaps reports whether two segments of the same route share at least one leg.
// A->B and B->C do not overlap.
func (s Segment) Overlaps(other Segment) bool {
	return s.FromIndex < other.ToIndex && other.FromIndex < s.ToIndex
}

// SegmentResolver decomposes trips into legs and decides which seats are
// free for an entire segment
type SegmentResolver struct{}

// NewSegmentResolver creates a new SegmentResolver
func NewSegmentResolver() *SegmentResolver {
	return &SegmentResolver{}
}

// ResolveSegment validates from/to against the stop sequence
func (r *SegmentResolver) ResolveSegment(stops []models.TrainStop, from, to string) (Segment, error) {
	if len(stops) < 2 {
		return Segment{}, models.ErrInvalidSegment.WithMessage("train has fewer than two stops")
	}

	ordered := make([]models.TrainStop, len(stops))
	copy(ordered, stops)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	stations := make([]string, len(ordered))
	for i, stop := range ordered {
		stations[i] = stop.Station
	}

	fromIndex := -1
	for i, station := range stations {
		if station == from {
			fromIndex = i
			break
		}
	}
	if fromIndex < 0 {
		return Segment{}, models.ErrInvalidSegment.WithMessage("station %q is not on this route", from)
	}

	toIndex := -1
	for i := fromIndex + 1; i < len(stations); i++ {
		if stations[i] == to {
			toIndex = i
			break
		}
	}
	if toIndex < 0 {
		for _, station := range stations[:fromIndex+1] {
			if station == to {
				return Segment{}, models.ErrInvalidSegment.WithMessage("station %q does not come after %q", to, from)
			}
		}
		return Segment{}, models.ErrInvalidSegment.WithMessage("station %q is not on this route", to)
	}

	return Segment{
		From:      from,
		To:        to,
		FromIndex: fromIndex,
		ToIndex:   toIndex,
		stations:  stations,
	}, nil
}

// AvailableSeats returns seats whose every leg in the segment is present and
// available, in first-fit order (car number, then seat number).
func (r *SegmentResolver) AvailableSeats(records []models.SeatSegmentRecord, seg Segment) []models.SeatRef {
	wanted := make(map[Leg]int, seg.ToIndex-seg.FromIndex)
	for i, leg := range seg.Legs() {
		wanted[leg] = i
	}

	type seatState struct {
		ref     models.SeatRef
		covered []bool
		blocked bool
	}
	seats := make(map[string]*seatState)
	var order []string

	for _, rec := range records {
		ref := models.SeatRef{CarNo: rec.CarNo, SeatNo: rec.SeatNo, Type: rec.SeatType}
		key := ref.Key()
		state, ok := seats[key]
		if !ok {
			state = &seatState{ref: ref, covered: make([]bool, len(wanted))}
			seats[key] = state
			order = append(order, key)
		}

		idx, inSegment := wanted[Leg{From: rec.FromStation, To: rec.ToStation}]
		if !inSegment {
			continue
		}
		if rec.Status != models.SeatStatusAvailable {
			state.blocked = true
			continue
		}
		state.covered[idx] = true
	}

	var free []models.SeatRef
	for _, key := range order {
		state := seats[key]
		if state.blocked || !allTrue(state.covered) {
			continue
		}
		free = append(free, state.ref)
	}

	SortSeats(free)
	return free
}

// CountAvailable returns the leg-precise number of seats free for the segment
func (r *SegmentResolver) CountAvailable(records []models.SeatSegmentRecord, seg Segment) int {
	return len(r.AvailableSeats(records, seg))
}

// NextSeat returns the first candidate not already claimed by this request
func (r *SegmentResolver) NextSeat(candidates []models.SeatRef, claimed map[string]bool) (models.SeatRef, bool) {
	for _, seat := range candidates {
		if !claimed[seat.Key()] {
			return seat, true
		}
	}
	return models.SeatRef{}, false
}

// SelectSeats picks the first n unclaimed seats
func (r *SegmentResolver) SelectSeats(candidates []models.SeatRef, n int, claimed map[string]bool) ([]models.SeatRef, error) {
	picked := make([]models.SeatRef, 0, n)
	taken := make(map[string]bool, len(claimed)+n)
	for k, v := range claimed {
		taken[k] = v
	}
	for len(picked) < n {
		seat, ok := r.NextSeat(candidates, taken)
		if !ok {
			return nil, models.ErrInsufficientSeats.WithMessage("requested %d seats, %d available", n, len(picked))
		}
		taken[seat.Key()] = true
		picked = append(picked, seat)
	}
	return picked, nil
}

// SortSeats orders seats by car number, then by seat number with numeric
// prefixes compared as numbers ("2" before "10")
func SortSeats(seats []models.SeatRef) {
	sort.SliceStable(seats, func(i, j int) bool {
		if seats[i].CarNo != seats[j].CarNo {
			return seats[i].CarNo < seats[j].CarNo
		}
		return seatNumberLess(seats[i].SeatNo, seats[j].SeatNo)
	})
}

func seatNumberLess(a, b string) bool {
	na, ra := splitSeatNumber(a)
	nb, rb := splitSeatNumber(b)
	if na != nb {
		return na < nb
	}
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func splitSeatNumber(s string) (int, string) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return -1, s
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return -1, s
	}
	return n, strings.ToUpper(s[end:])
}

func allTrue(values []bool) bool {
	for _, v := range values {
		if !v {
			return false
		}
	}
	return true
}
