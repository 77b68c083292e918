package types

// Venue identifies one of the two prediction-market exchanges.
type Venue string

const (
	VenueOpinion    Venue = "opinion"
	VenuePolymarket Venue = "polymarket"
)

// Other returns the opposite venue.
func (v Venue) Other() Venue {
	if v == VenueOpinion {
		return VenuePolymarket
	}
	return VenueOpinion
}

// Outcome is one side of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Complement returns the opposite outcome.
func (o Outcome) Complement() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TIF is the time-in-force of an order.
type TIF string

const (
	TIFIOC TIF = "IOC"
	TIFGTC TIF = "GTC"
)
