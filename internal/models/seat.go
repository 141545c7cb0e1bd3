package models

import (
	"strconv"
	"strings"
	"time"
)

// SeatType represents a class of seat on a train
type SeatType string

const (
	SeatTypeBusiness    SeatType = "商务座"
	SeatTypeFirstClass  SeatType = "一等座"
	SeatTypeSecondClass SeatType = "二等座"
	SeatTypeSoftSleeper SeatType = "软卧"
	SeatTypeHardSleeper SeatType = "硬卧"
)

// AllSeatTypes lists seat types in display order
var AllSeatTypes = []SeatType{
	SeatTypeBusiness,
	SeatTypeFirstClass,
	SeatTypeSecondClass,
	SeatTypeSoftSleeper,
	SeatTypeHardSleeper,
}

// IsValid reports whether the seat type is one of the known classes
func (t SeatType) IsValid() bool {
	for _, known := range AllSeatTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DefaultSeatType returns the seat type used when a request names none.
// High-speed trains (G/C/D) default to second class, others to hard sleeper.
func DefaultSeatType(trainNo string) SeatType {
	prefix := strings.ToUpper(strings.TrimSpace(trainNo))
	if strings.HasPrefix(prefix, "G") || strings.HasPrefix(prefix, "C") || strings.HasPrefix(prefix, "D") {
		return SeatTypeSecondClass
	}
	return SeatTypeHardSleeper
}

// SeatStatus represents the occupancy of a single leg record
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusBooked    SeatStatus = "booked"
)

// SeatSegmentRecord is one leg of one physical seat on a train/date
type SeatSegmentRecord struct {
	TrainNo       string     `json:"train_no" db:"train_no"`
	DepartureDate string     `json:"departure_date" db:"departure_date"`
	CarNo         int        `json:"car_no" db:"car_no"`
	SeatNo        string     `json:"seat_no" db:"seat_no"`
	SeatType      SeatType   `json:"seat_type" db:"seat_type"`
	FromStation   string     `json:"from_station" db:"from_station"`
	ToStation     string     `json:"to_station" db:"to_station"`
	Status        SeatStatus `json:"status" db:"status"`
	BookedBy      *string    `json:"booked_by,omitempty" db:"booked_by"`
	BookedAt      *time.Time `json:"booked_at,omitempty" db:"booked_at"`
}

// SeatRef identifies a physical seat within a train/date
type SeatRef struct {
	CarNo  int      `json:"car_no" db:"car_no"`
	SeatNo string   `json:"seat_no" db:"seat_no"`
	Type   SeatType `json:"seat_type" db:"seat_type"`
}

// Key returns a stable identifier for the seat inside one train/date
func (s SeatRef) Key() string {
	return strconv.Itoa(s.CarNo) + "-" + s.SeatNo
}

// SeatLock is a time-bounded hold on a seat while its order awaits payment
type SeatLock struct {
	ID            string    `json:"id" db:"id"`
	OrderID       string    `json:"order_id" db:"order_id"`
	TrainNo       string    `json:"train_no" db:"train_no"`
	DepartureDate string    `json:"departure_date" db:"departure_date"`
	SeatType      SeatType  `json:"seat_type" db:"seat_type"`
	CarNo         int       `json:"car_no" db:"car_no"`
	SeatNo        string    `json:"seat_no" db:"seat_no"`
	LockedAt      time.Time `json:"locked_at" db:"locked_at"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
}

// SeatTypeAvailability is the free-seat count for one seat type over a segment
type SeatTypeAvailability struct {
	SeatType  SeatType `json:"seat_type"`
	Available int      `json:"available"`
	Total     int      `json:"total"`
}
