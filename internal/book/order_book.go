package book

import (
	"predmarket/internal/domain"
	"sort"
)

// restingOrder is the book's view of an open order. The authoritative order
// row lives in storage; the book only needs identity, price and remainder.
type restingOrder struct {
	id        string
	userID    string
	price     int64 // ticks
	remaining int64
}

// priceLevel is a FIFO queue of resting orders at one price. Ties at a level
// are broken strictly by arrival order.
type priceLevel struct {
	price int64
	queue []*restingOrder
}

func (l *priceLevel) totalRemaining() int64 {
	var sum int64
	for _, o := range l.queue {
		sum += o.remaining
	}
	return sum
}

// sideBook keeps price levels sorted best-first: descending price for bids,
// ascending for asks.
type sideBook struct {
	desc   bool
	levels []*priceLevel
}

// find returns the index where price lives or should be inserted.
func (sb *sideBook) find(price int64) int {
	return sort.Search(len(sb.levels), func(i int) bool {
		if sb.desc {
			return sb.levels[i].price <= price
		}
		return sb.levels[i].price >= price
	})
}

// level returns the queue at price, creating it in sorted position.
func (sb *sideBook) level(price int64) *priceLevel {
	i := sb.find(price)
	if i < len(sb.levels) && sb.levels[i].price == price {
		return sb.levels[i]
	}
	l := &priceLevel{price: price}
	sb.levels = append(sb.levels, nil)
	copy(sb.levels[i+1:], sb.levels[i:])
	sb.levels[i] = l
	return l
}

// best returns the top-of-book level, or nil when the side is empty.
func (sb *sideBook) best() *priceLevel {
	if len(sb.levels) == 0 {
		return nil
	}
	return sb.levels[0]
}

func (sb *sideBook) dropBest() {
	sb.levels = sb.levels[1:]
}

// remove deletes one resting order, dropping its level when it empties.
func (sb *sideBook) remove(ro *restingOrder) bool {
	i := sb.find(ro.price)
	if i >= len(sb.levels) || sb.levels[i].price != ro.price {
		return false
	}
	l := sb.levels[i]
	for j, o := range l.queue {
		if o == ro {
			l.queue = append(l.queue[:j], l.queue[j+1:]...)
			if len(l.queue) == 0 {
				sb.levels = append(sb.levels[:i], sb.levels[i+1:]...)
			}
			return true
		}
	}
	return false
}

// tokenBook is the bid/ask pair for one token.
type tokenBook struct {
	bids *sideBook
	asks *sideBook
}

func newTokenBook() *tokenBook {
	return &tokenBook{
		bids: &sideBook{desc: true},
		asks: &sideBook{desc: false},
	}
}

// orderRef locates a resting order for cancellation.
type orderRef struct {
	ro    *restingOrder
	side  domain.Side
	token domain.Token
}

// MarketBook holds the two token books of one market. It is not safe for
// concurrent use; the engine serializes all access per market.
type MarketBook struct {
	tokens map[domain.Token]*tokenBook
	orders map[string]orderRef
}

// New returns an empty market book.
func New() *MarketBook {
	return &MarketBook{
		tokens: map[domain.Token]*tokenBook{
			domain.TokenYes: newTokenBook(),
			domain.TokenNo:  newTokenBook(),
		},
		orders: make(map[string]orderRef),
	}
}

// Crosses reports whether an order with the given side and limit can trade
// against a resting order at makerPrice.
func Crosses(side domain.Side, limitTicks, makerTicks int64) bool {
	if side == domain.SideBuy {
		return limitTicks >= makerTicks
	}
	return limitTicks <= makerTicks
}

// Insert matches o against the opposite side of its token book under
// price-time priority and rests any unfilled remainder at o's limit price.
// Fills execute at the resting order's price. The taker's Filled count is
// advanced in place.
func (b *MarketBook) Insert(o *domain.Order) []domain.Fill {
	tb := b.tokens[o.Token]
	own, opp := tb.bids, tb.asks
	if o.Side == domain.SideSell {
		own, opp = tb.asks, tb.bids
	}

	limit := o.PriceTicks()
	var fills []domain.Fill
	for o.Remaining() > 0 {
		best := opp.best()
		if best == nil || !Crosses(o.Side, limit, best.price) {
			break
		}
		maker := best.queue[0]
		n := o.Remaining()
		if maker.remaining < n {
			n = maker.remaining
		}
		o.Filled += n
		maker.remaining -= n
		fills = append(fills, domain.Fill{
			MakerOrderID: maker.id,
			MakerUserID:  maker.userID,
			PriceTicks:   best.price,
			Size:         n,
		})
		if maker.remaining == 0 {
			best.queue = best.queue[1:]
			delete(b.orders, maker.id)
			if len(best.queue) == 0 {
				opp.dropBest()
			}
		}
	}

	if o.Remaining() > 0 {
		b.rest(own, o, limit)
	}
	return fills
}

// Restore rests an already-open order without matching. Used when rebuilding
// a book from persisted open orders, whose fills were settled long ago.
func (b *MarketBook) Restore(o *domain.Order) {
	tb := b.tokens[o.Token]
	side := tb.bids
	if o.Side == domain.SideSell {
		side = tb.asks
	}
	b.rest(side, o, o.PriceTicks())
}

func (b *MarketBook) rest(side *sideBook, o *domain.Order, price int64) {
	ro := &restingOrder{
		id:        o.ID,
		userID:    o.UserID,
		price:     price,
		remaining: o.Remaining(),
	}
	l := side.level(price)
	l.queue = append(l.queue, ro)
	b.orders[o.ID] = orderRef{ro: ro, side: o.Side, token: o.Token}
}

// Cancel removes a resting order from its side of the book.
func (b *MarketBook) Cancel(orderID string) error {
	ref, ok := b.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	tb := b.tokens[ref.token]
	side := tb.bids
	if ref.side == domain.SideSell {
		side = tb.asks
	}
	side.remove(ref.ro)
	delete(b.orders, orderID)
	return nil
}

// Len returns the number of resting orders across both tokens.
func (b *MarketBook) Len() int {
	return len(b.orders)
}

// BestBid returns the highest resting buy price for a token.
func (b *MarketBook) BestBid(t domain.Token) (int64, bool) {
	if l := b.tokens[t].bids.best(); l != nil {
		return l.price, true
	}
	return 0, false
}

// BestAsk returns the lowest resting sell price for a token.
func (b *MarketBook) BestAsk(t domain.Token) (int64, bool) {
	if l := b.tokens[t].asks.best(); l != nil {
		return l.price, true
	}
	return 0, false
}
