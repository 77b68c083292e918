package types

import "time"

// MarketSummary describes one binary market on one venue.
type MarketSummary struct {
	Venue          Venue
	MarketID       string
	Title          string
	Slug           string
	ResolutionDate time.Time
	Active         bool
	YesToken       Token
	NoToken        Token
}

// TokenFor returns the market's token for the given outcome.
func (m *MarketSummary) TokenFor(o Outcome) Token {
	if o == OutcomeYes {
		return m.YesToken
	}
	return m.NoToken
}

// MarketPair binds two markets, one per venue, trading the same real-world
// question. Once bound a pair is sticky: it is re-verified on each matcher
// refresh but not re-matched unless either side closes.
type MarketPair struct {
	ID         string
	Question   string
	Opinion    MarketSummary
	Polymarket MarketSummary
	Similarity float64
	BoundAt    time.Time
}

// Tokens returns all four outcome tokens of the pair.
func (p *MarketPair) Tokens() []Token {
	return []Token{
		p.Opinion.YesToken, p.Opinion.NoToken,
		p.Polymarket.YesToken, p.Polymarket.NoToken,
	}
}

// Market returns the pair's market on the given venue.
func (p *MarketPair) Market(v Venue) *MarketSummary {
	if v == VenueOpinion {
		return &p.Opinion
	}
	return &p.Polymarket
}

// DaysToResolution returns the number of days until the earlier of the two
// resolution dates, floored at one day for annualization.
func (p *MarketPair) DaysToResolution(now time.Time) float64 {
	res := p.Opinion.ResolutionDate
	if p.Polymarket.ResolutionDate.Before(res) {
		res = p.Polymarket.ResolutionDate
	}
	days := res.Sub(now).Hours() / 24
	if days < 1 {
		return 1
	}
	return days
}
