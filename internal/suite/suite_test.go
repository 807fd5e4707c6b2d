package suite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/config"
	"github.com/abdoElHodaky/tradingsuite/internal/instrument"
	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/abdoElHodaky/tradingsuite/internal/orders"
	"github.com/abdoElHodaky/tradingsuite/internal/risk"
	"github.com/abdoElHodaky/tradingsuite/internal/stream"
	"github.com/abdoElHodaky/tradingsuite/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAuthenticator struct{}

func (fakeAuthenticator) Authenticate(ctx context.Context) (transport.Token, error) {
	return transport.Token{Value: "tok", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type fakeDialer struct{}

func (fakeDialer) Dial(ctx context.Context, rawURL string) (stream.Conn, error) {
	return nil, errors.New("dial not exercised in this test")
}

func testInstrument(t *testing.T) *instrument.Instrument {
	t.Helper()
	instr, err := instrument.New("CON.F.US.ES.H26", "es", money.MustNew("0.25"), money.MustNew("12.50"), "America/New_York")
	require.NoError(t, err)
	return instr
}

func testDeps() Deps {
	return Deps{
		Authenticator: fakeAuthenticator{},
		Dialer:        fakeDialer{},
		MarketURL:     func(token string) (string, error) { return "wss://example/market?token=" + token, nil },
		UserURL:       func(token string) (string, error) { return "wss://example/user?token=" + token, nil },
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Contract = "CON.F.US.ES.H26"
	cfg.Features = []string{config.FeatureOrderbook, config.FeatureRiskManager}
	return cfg
}

func TestNew_WiresAllFeatureGatedComponents(t *testing.T) {
	s, err := New(testConfig(), testInstrument(t), testDeps(), zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, s.book)
	assert.NotNil(t, s.scope)
	assert.NotNil(t, s.orders)
	assert.NotNil(t, s.positions)
	assert.NotNil(t, s.bars)
}

func TestNew_OmitsOrderbookWhenFeatureDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Features = nil
	s, err := New(cfg, testInstrument(t), testDeps(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, s.book)
	assert.Nil(t, s.scope)
}

func TestPlaceManagedTrade_RejectsWhenRiskManagerDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Features = nil
	s, err := New(cfg, testInstrument(t), testDeps(), zap.NewNop())
	require.NoError(t, err)

	err = s.PlaceManagedTrade(context.Background(), risk.TradeParams{}, func(context.Context, *orders.Bracket) error { return nil })
	assert.Error(t, err)
}

func TestMarketFrameHandler_RoutesTradeIntoBarsAndBook(t *testing.T) {
	s, err := New(testConfig(), testInstrument(t), testDeps(), zap.NewNop())
	require.NoError(t, err)

	raw := []byte(`{"type":"GatewayTrade","data":{"price":"5100.00","size":2,"aggressor":"Buy","timestamp_ns":1}}`)
	err = s.marketFrameHandler(raw)
	assert.NoError(t, err)
}

func TestMarketFrameHandler_RejectsUnknownFrameType(t *testing.T) {
	s, err := New(testConfig(), testInstrument(t), testDeps(), zap.NewNop())
	require.NoError(t, err)

	err = s.marketFrameHandler([]byte(`{"type":"GatewayBogus","data":{}}`))
	assert.Error(t, err)
}

func TestMarketFrameHandler_RejectsMalformedEnvelope(t *testing.T) {
	s, err := New(testConfig(), testInstrument(t), testDeps(), zap.NewNop())
	require.NoError(t, err)

	err = s.marketFrameHandler([]byte(`not json`))
	assert.Error(t, err)
}

func TestUserFrameHandler_AppliesPositionFill(t *testing.T) {
	s, err := New(testConfig(), testInstrument(t), testDeps(), zap.NewNop())
	require.NoError(t, err)

	raw := []byte(`{"type":"GatewayUserPosition","data":{"fill_id":"f1","contract_id":"CON.F.US.ES.H26","side":0,"size":3,"price":"5100.00","timestamp_ns":1}}`)
	err = s.userFrameHandler(raw)
	assert.NoError(t, err)
}

func TestBookSide_MapsWireEncodingToBidAsk(t *testing.T) {
	assert.Equal(t, 0, int(bookSide(0)))
	assert.Equal(t, 1, int(bookSide(1)))
}

func TestTrackAndUntrackTrailingStop_IsIdempotent(t *testing.T) {
	s, err := New(testConfig(), testInstrument(t), testDeps(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.TrackTrailingStop(ctx, "stop1", money.Buy, money.MustNew("5090.00"), 4)
	s.UntrackTrailingStop("stop1")
	s.UntrackTrailingStop("stop1")
}
