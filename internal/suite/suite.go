// Package suite is the composition root: it wires every component
// together via explicit constructor injection, gates optional
// components per config.Config.Features, and owns startup/shutdown
// ordering through the shared pkg/tasks.Registry. There is no DI
// framework here; New is the only place the whole dependency graph is
// visible at once.
package suite

import (
	"context"
	"sync"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/bars"
	"github.com/abdoElHodaky/tradingsuite/internal/book"
	"github.com/abdoElHodaky/tradingsuite/internal/clock"
	"github.com/abdoElHodaky/tradingsuite/internal/config"
	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	"github.com/abdoElHodaky/tradingsuite/internal/instrument"
	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/abdoElHodaky/tradingsuite/internal/orders"
	"github.com/abdoElHodaky/tradingsuite/internal/positions"
	"github.com/abdoElHodaky/tradingsuite/internal/risk"
	"github.com/abdoElHodaky/tradingsuite/internal/stats"
	"github.com/abdoElHodaky/tradingsuite/internal/stream"
	"github.com/abdoElHodaky/tradingsuite/internal/transport"
	"github.com/abdoElHodaky/tradingsuite/internal/validate"
	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"go.uber.org/zap"
)

// Deps bundles the collaborators only the embedding application can
// provide: Gateway authentication, the websocket dialer, and the hub
// URL builders (the token never appears in a log line this package
// writes).
type Deps struct {
	Authenticator transport.Authenticator
	Dialer        stream.Dialer
	MarketURL     func(token string) (string, error)
	UserURL       func(token string) (string, error)
}

// Suite owns every component for one traded instrument and one Gateway
// session.
type Suite struct {
	cfg        *config.Config
	instrument *instrument.Instrument
	logger     *zap.Logger
	registry   *tasks.Registry
	bus        *eventbus.Bus
	seq        eventbus.Sequencer
	stats      *stats.Registry

	transport *transport.Transport
	stream    *stream.Client

	validator *validate.Validator
	bars      *bars.Aggregator
	book      *book.Book
	orders    *orders.Engine
	positions *positions.Tracker

	scope   *risk.ScopeManager
	daily   *risk.DailyScheduler

	timeframes []bars.Timeframe

	trailingMu sync.Mutex
	trailing   map[string]*risk.TrailingStop // stopID -> task
}

// New builds the full dependency graph for instr under cfg. Optional
// components (Book Engine, Risk Manager) are constructed only if their
// feature name is present in cfg.Features.
func New(cfg *config.Config, instr *instrument.Instrument, deps Deps, logger *zap.Logger) (*Suite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	registry := tasks.New(logger)
	bus := eventbus.New(logger, registry)
	statsRegistry := stats.NewRegistry(bus, toStatsWeights(cfg.HealthWeights), stats.DefaultHealthThresholds(), 5*time.Second)

	tport := transport.New(transport.DefaultConfig(""), deps.Authenticator, logger)

	validator := validate.New(validate.DefaultConfig(), instr.TickSize)

	timeframes := make([]bars.Timeframe, 0, len(cfg.Timeframes))
	for _, name := range cfg.Timeframes {
		d, err := time.ParseDuration(normalizeTimeframe(name))
		if err != nil {
			return nil, err
		}
		timeframes = append(timeframes, bars.Timeframe{Name: name, Period: d})
	}

	barAgg := bars.New(bars.Config{Timeframes: timeframes}, instr.ContractID, instr.TickSize, loc, validator, bus, registry, logger, clock.Real{})

	var bookEngine *book.Book
	if cfg.HasFeature(config.FeatureOrderbook) {
		bookEngine = book.New(book.DefaultConfig(), instr.ContractID, bus)
	}

	submitter := orders.NewSubmitter(transportRequester{t: tport})
	lookup := singleInstrumentLookup{contractID: instr.ContractID, tickSize: instr.TickSize}
	orderEngine := orders.New(orders.DefaultConfig(), submitter, lookup, bus, registry, logger)

	positionTracker := positions.New(bus)

	s := &Suite{
		cfg:        cfg,
		instrument: instr,
		logger:     logger,
		registry:   registry,
		bus:        bus,
		stats:      statsRegistry,
		transport:  tport,
		validator:  validator,
		bars:       barAgg,
		book:       bookEngine,
		orders:     orderEngine,
		positions:  positionTracker,
		timeframes: timeframes,
		trailing:   make(map[string]*risk.TrailingStop),
	}

	if cfg.HasFeature(config.FeatureRiskManager) {
		s.scope = risk.NewScopeManager(orderEngine)
	}

	hubCfg := stream.DefaultHubConfig()
	s.stream = stream.New(hubCfg, deps.Dialer, deps.MarketURL, deps.UserURL, s.marketFrameHandler, s.userFrameHandler, bus, registry, logger)

	tport.OnTokenChanged(func(old, newTok transport.Token) {
		if !s.stream.IsConnected() {
			return
		}
		if err := s.stream.RotateToken(context.Background(), newTok.Value); err != nil {
			s.stats.Component("stream").RecordError("token_rotation_failed")
		}
	})

	return s, nil
}

// Start authenticates against the Gateway, connects the stream hubs,
// begins the bar aggregator's empty-bar tasks, and, if the risk manager
// feature is enabled, the daily counter-reset scheduler.
func (s *Suite) Start(ctx context.Context) error {
	s.bars.Start(ctx, s.timeframes)
	if s.cfg.HasFeature(config.FeatureRiskManager) {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			return err
		}
		s.daily = risk.NewDailyScheduler(ctx, s.registry, clock.Real{}, loc, 18, 0, s.logger)
	}
	tok, err := s.transport.Authenticate(ctx)
	if err != nil {
		return err
	}
	return s.stream.Connect(ctx, tok.Value)
}

// Shutdown tears down the stream hubs and cancels every managed task in
// reverse registration order, per pkg/tasks.Registry's documented
// shutdown ordering.
func (s *Suite) Shutdown(ctx context.Context, deadline time.Duration) {
	s.stream.Disconnect(ctx)
	s.registry.Shutdown(deadline)
}

// PlaceManagedTrade runs a risk-sized bracket trade through the
// ScopeManager, available only when the risk_manager feature is
// enabled.
func (s *Suite) PlaceManagedTrade(ctx context.Context, p risk.TradeParams, fn func(ctx context.Context, bracket *orders.Bracket) error) error {
	if s.scope == nil {
		return errFeatureDisabled(config.FeatureRiskManager)
	}
	return s.scope.Run(ctx, p, fn)
}

// TrackTrailingStop registers a managed trailing-stop task for a
// protective stop order, so subsequent trade prices move it per
// internal/risk's rules.
func (s *Suite) TrackTrailingStop(ctx context.Context, stopID string, side money.Side, initialStop money.Decimal, trailTicks int64) {
	ts := risk.NewTrailingStop(ctx, s.registry, s.orders, stopID, side, initialStop, s.instrument.TickSize, trailTicks)
	s.trailingMu.Lock()
	s.trailing[stopID] = ts
	s.trailingMu.Unlock()
}

// UntrackTrailingStop cancels and forgets a previously tracked trailing
// stop; idempotent.
func (s *Suite) UntrackTrailingStop(stopID string) {
	s.trailingMu.Lock()
	ts, ok := s.trailing[stopID]
	delete(s.trailing, stopID)
	s.trailingMu.Unlock()
	if ok {
		ts.Cancel()
	}
}

func (s *Suite) feedTrailingStops(price money.Decimal) {
	s.trailingMu.Lock()
	defer s.trailingMu.Unlock()
	for _, ts := range s.trailing {
		ts.OnPrice(price)
	}
}

func bookSide(raw int64) book.Side {
	if raw == 1 {
		return book.SideAsk
	}
	return book.SideBid
}

func toStatsWeights(w config.HealthWeights) stats.HealthWeights {
	return stats.HealthWeights{
		ConnectionHealth: w.ConnectionHealth,
		ValidationReject: w.ValidationReject,
		RetryRate:        w.RetryRate,
		BufferUtil:       w.BufferUtil,
		ErrorRateDelta:   w.ErrorRateDelta,
	}
}

// normalizeTimeframe returns the configured timeframe name unchanged:
// time.ParseDuration already accepts shorthand such as "1m", "5m" and
// "1h". A bare number such as "5" is not rewritten, so New rejects it.
func normalizeTimeframe(name string) string {
	return name
}
