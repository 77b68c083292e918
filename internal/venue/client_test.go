package venue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossvenue/crossarb/pkg/types"
)

type pagingClient struct {
	stubClient
	pages []MarketsPage
	seen  []string
}

func (p *pagingClient) ListMarkets(ctx context.Context, cursor string) (MarketsPage, error) {
	p.seen = append(p.seen, cursor)
	page := p.pages[0]
	p.pages = p.pages[1:]
	return page, nil
}

func TestListAllMarketsFollowsCursor(t *testing.T) {
	c := &pagingClient{
		stubClient: stubClient{venue: types.VenueOpinion},
		pages: []MarketsPage{
			{Markets: []types.MarketSummary{{MarketID: "m1"}, {MarketID: "m2"}}, NextCursor: "p2"},
			{Markets: []types.MarketSummary{{MarketID: "m3"}}, NextCursor: ""},
		},
	}
	markets, err := ListAllMarkets(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, markets, 3)
	assert.Equal(t, []string{"", "p2"}, c.seen)
}

func TestValidateTicket(t *testing.T) {
	token := types.Token{
		Venue:        types.VenueOpinion,
		TokenID:      "tok",
		TickSize:     0.001,
		MinOrderSize: 5,
	}
	base := types.OrderTicket{
		Venue:      types.VenueOpinion,
		Token:      token,
		Side:       types.SideBuy,
		LimitPrice: 0.42,
		OrderQty:   100,
	}

	tests := []struct {
		name    string
		mutate  func(*types.OrderTicket)
		wantErr bool
	}{
		{name: "valid", mutate: func(tk *types.OrderTicket) {}},
		{name: "off-grid price", mutate: func(tk *types.OrderTicket) { tk.LimitPrice = 0.4205 }, wantErr: true},
		{name: "price at one", mutate: func(tk *types.OrderTicket) { tk.LimitPrice = 1.0 }, wantErr: true},
		{name: "below minimum size", mutate: func(tk *types.OrderTicket) { tk.OrderQty = 2 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := base
			tt.mutate(&tk)
			err := ValidateTicket(&tk)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrValidation, types.KindOf(err))
				assert.False(t, types.IsRetryable(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}
