package suite

import (
	"context"
	"io"
	"net/http"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/abdoElHodaky/tradingsuite/internal/transport"
)

// transportRequester adapts *transport.Transport's EndpointClass-typed
// Request method to the plain-string requester interface
// internal/orders depends on, keeping orders decoupled from transport's
// concrete types.
type transportRequester struct {
	t *transport.Transport
}

func (a transportRequester) Request(ctx context.Context, class, method, path string, body io.Reader) (*http.Response, error) {
	return a.t.Request(ctx, transport.EndpointClass(class), method, path, body)
}

// singleInstrumentLookup implements orders.InstrumentLookup over the
// Suite's one traded instrument.
type singleInstrumentLookup struct {
	contractID string
	tickSize   money.Decimal
}

func (l singleInstrumentLookup) TickSize(contractID string) (money.Decimal, bool) {
	if contractID != l.contractID {
		return money.Zero, false
	}
	return l.tickSize, true
}
