package pricing

import (
	"encoding/json"
	"math"
	"time"
)

// Clock is the time source for surge evaluation. Injecting it keeps fare
// calculation deterministic and testable at any simulated instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Used in tests and quotes
// pinned to a point in time.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }

// FareBreakdown is the itemized result of a fare calculation. It is
// stored on the ride as a serialized string and must round-trip through
// Serialize/Parse without loss.
type FareBreakdown struct {
	BaseFare     float64 `json:"baseFare"`
	DistanceFare float64 `json:"distanceFare"`
	TimeFare     float64 `json:"timeFare"`
	Subtotal     float64 `json:"subtotal"`
	Multiplier   float64 `json:"multiplier"`
	Total        float64 `json:"total"`
	Commission   float64 `json:"commission"`
	Currency     string  `json:"currency"`
}

// Input carries the parameters for a fare calculation. Tariff fields come
// from the tenant configuration; distance and duration from the ride.
type Input struct {
	DistanceKm        float64
	DurationMinutes   float64
	BaseFare          float64
	PricePerKm        float64
	PricePerMinute    float64
	MinimumFare       float64
	Currency          string
	SurgePricing      bool
	CommissionPercent float64
}

// Calculate computes a fare breakdown. Each monetary component is rounded
// to 2 decimal places independently; the total is derived from the
// already-rounded subtotal and rounded again after the multiplier and
// minimum-fare floor are applied.
func Calculate(in Input, clock Clock) FareBreakdown {
	distanceFare := round2(in.DistanceKm * in.PricePerKm)
	timeFare := round2(in.DurationMinutes * in.PricePerMinute)
	baseFare := round2(in.BaseFare)
	subtotal := round2(baseFare + distanceFare + timeFare)

	multiplier := 1.0
	if in.SurgePricing {
		multiplier = SurgeMultiplier(clock.Now())
	}

	total := subtotal * multiplier
	if total < in.MinimumFare {
		total = in.MinimumFare
	}
	total = round2(total)

	return FareBreakdown{
		BaseFare:     baseFare,
		DistanceFare: distanceFare,
		TimeFare:     timeFare,
		Subtotal:     subtotal,
		Multiplier:   multiplier,
		Total:        total,
		Commission:   round2(total * in.CommissionPercent / 100),
		Currency:     in.Currency,
	}
}

// SurgeMultiplier returns the time-of-day fare scaling factor:
// weekday morning (07:00-09:00) and evening (17:00-20:00) peaks pay 1.5x,
// Friday and Saturday nights (22:00-02:00) pay 1.8x, everything else 1.0.
func SurgeMultiplier(at time.Time) float64 {
	hour := at.Hour()
	day := at.Weekday()

	isWeekday := day >= time.Monday && day <= time.Friday
	isMorningPeak := hour >= 7 && hour < 9
	isEveningPeak := hour >= 17 && hour < 20
	if isWeekday && (isMorningPeak || isEveningPeak) {
		return 1.5
	}

	// The night window is day-literal: both the 22:00+ and the pre-02:00
	// hours must fall on a Friday or Saturday. Sunday 01:00 is quiet;
	// Friday 01:00 is not.
	if (day == time.Friday || day == time.Saturday) && (hour >= 22 || hour < 2) {
		return 1.8
	}

	return 1.0
}

// Serialize encodes a breakdown for storage on the ride row.
func Serialize(b FareBreakdown) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Parse decodes a stored breakdown. Parse(Serialize(x)) == x for every
// valid breakdown.
func Parse(s string) (FareBreakdown, error) {
	var b FareBreakdown
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		return FareBreakdown{}, err
	}
	return b, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
