package services

import "time"

// Clock returns the current instant. Services read time only through it.
type Clock func() time.Time

// SystemClock is the production clock, always in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

// Option configures optional collaborators of the booking core services
type Option func(*options)

type options struct {
	clock  Clock
	events OrderEventPublisher
	locker Locker
	fares  FareQuoter
}

func applyOptions(opts []Option) options {
	o := options{
		clock:  SystemClock,
		events: NoopEventPublisher{},
		locker: NewLocalLocker(),
		fares:  NoFareQuoter{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the clock, mainly for tests
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithEventPublisher wires a publisher for order lifecycle events
func WithEventPublisher(publisher OrderEventPublisher) Option {
	return func(o *options) {
		if publisher != nil {
			o.events = publisher
		}
	}
}

// WithLocker wires the lock used to serialize sweeps and per-user cancellations
func WithLocker(locker Locker) Option {
	return func(o *options) {
		if locker != nil {
			o.locker = locker
		}
	}
}

// WithFareQuoter wires the fare service used to price passenger lines
func WithFareQuoter(fares FareQuoter) Option {
	return func(o *options) {
		if fares != nil {
			o.fares = fares
		}
	}
}

// calendarDate formats the local calendar day of an instant
func calendarDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01-02")
}
