package suite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	"github.com/abdoElHodaky/tradingsuite/internal/money"
	tserrors "github.com/abdoElHodaky/tradingsuite/pkg/errors"
)

// wireFrame is the envelope every Gateway callback shares: a frame type
// discriminator plus its own payload, decoded in two passes so unknown
// types are counted as protocol corruption rather than guessed at.
type wireFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type tradeFrame struct {
	Price     string `json:"price"`
	Size      int64  `json:"size"`
	Aggressor string `json:"aggressor"`
	Timestamp int64  `json:"timestamp_ns"`
}

type quoteFrame struct {
	Bid     string `json:"bid"`
	Ask     string `json:"ask"`
	BidSize int64  `json:"bid_size"`
	AskSize int64  `json:"ask_size"`
}

type depthFrame struct {
	Side      int64  `json:"side"` // 0=Buy(bid), 1=Sell(ask)
	Price     string `json:"price"`
	Volume    int64  `json:"volume"`
	Timestamp int64  `json:"timestamp_ns"`
}

type userOrderFrame struct {
	BrokerID  string `json:"broker_id"`
	FillSize  int64  `json:"fill_size"`
	FillPrice string `json:"fill_price"`
}

type userPositionFrame struct {
	FillID     string `json:"fill_id"`
	ContractID string `json:"contract_id"`
	Side       int64  `json:"side"` // 0=Buy, 1=Sell
	Size       int64  `json:"size"`
	Price      string `json:"price"`
	Timestamp  int64  `json:"timestamp_ns"`
}

// marketFrameHandler decodes GatewayTrade/GatewayQuote/GatewayDepth
// frames off the market hub and fans them into the Bar Aggregator,
// Book Engine and Event Bus.
func (s *Suite) marketFrameHandler(raw []byte) error {
	var env wireFrame
	if err := json.Unmarshal(raw, &env); err != nil {
		s.stats.Component("stream.market").RecordError("decode_failed")
		return tserrors.New(tserrors.CodeProtocolCorruption, "market frame: invalid envelope")
	}

	switch env.Type {
	case "GatewayTrade":
		var f tradeFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return tserrors.New(tserrors.CodeProtocolCorruption, "GatewayTrade: invalid payload")
		}
		price, err := money.New(f.Price)
		if err != nil {
			return tserrors.New(tserrors.CodeProtocolCorruption, "GatewayTrade: invalid price")
		}
		ts := time.Unix(0, f.Timestamp)
		if s.book != nil {
			s.book.RecordTrade(price, f.Size, f.Aggressor, ts)
		}
		if s.bars != nil {
			if err := s.bars.OnTrade(context.Background(), s.timeframes, price, f.Size, ts); err != nil {
				s.stats.Component("bars").RecordError("trade_rejected")
			}
		}
		s.feedTrailingStops(price)
		s.stats.Component("stream.market").RecordOperation("trade")
		return nil

	case "GatewayQuote":
		var f quoteFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return tserrors.New(tserrors.CodeProtocolCorruption, "GatewayQuote: invalid payload")
		}
		bid, err := money.New(f.Bid)
		if err != nil {
			return tserrors.New(tserrors.CodeProtocolCorruption, "GatewayQuote: invalid bid")
		}
		ask, err := money.New(f.Ask)
		if err != nil {
			return tserrors.New(tserrors.CodeProtocolCorruption, "GatewayQuote: invalid ask")
		}
		if s.validator.Quote(bid, ask) {
			s.stats.Component("stream.market").RecordError("quote_rejected")
			return nil
		}
		s.bus.Emit(context.Background(), eventbus.NewQuote(&s.seq, s.instrument.ContractID, f.Bid, f.Ask, f.BidSize, f.AskSize))
		s.stats.Component("stream.market").RecordOperation("quote")
		return nil

	case "GatewayDepth":
		var f depthFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return tserrors.New(tserrors.CodeProtocolCorruption, "GatewayDepth: invalid payload")
		}
		if s.book == nil {
			return nil
		}
		price, err := money.New(f.Price)
		if err != nil {
			return tserrors.New(tserrors.CodeProtocolCorruption, "GatewayDepth: invalid price")
		}
		side := bookSide(f.Side)
		s.book.UpdateDepth(context.Background(), side, price, f.Volume, time.Unix(0, f.Timestamp))
		s.stats.Component("stream.market").RecordOperation("depth")
		return nil

	default:
		s.stats.Component("stream.market").RecordError("unknown_frame_type")
		return fmt.Errorf("market frame: unrecognized type %q", env.Type)
	}
}

// userFrameHandler decodes GatewayUserOrder/GatewayUserPosition frames
// off the user hub and routes fills into the Order Engine and Position
// Tracker.
func (s *Suite) userFrameHandler(raw []byte) error {
	var env wireFrame
	if err := json.Unmarshal(raw, &env); err != nil {
		s.stats.Component("stream.user").RecordError("decode_failed")
		return tserrors.New(tserrors.CodeProtocolCorruption, "user frame: invalid envelope")
	}

	switch env.Type {
	case "GatewayUserOrder":
		var f userOrderFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return tserrors.New(tserrors.CodeProtocolCorruption, "GatewayUserOrder: invalid payload")
		}
		price, err := money.New(f.FillPrice)
		if err != nil {
			return tserrors.New(tserrors.CodeProtocolCorruption, "GatewayUserOrder: invalid price")
		}
		s.orders.OnFill(context.Background(), f.BrokerID, f.FillSize, price)
		s.stats.Component("stream.user").RecordOperation("user_order")
		return nil

	case "GatewayUserPosition":
		var f userPositionFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return tserrors.New(tserrors.CodeProtocolCorruption, "GatewayUserPosition: invalid payload")
		}
		price, err := money.New(f.Price)
		if err != nil {
			return tserrors.New(tserrors.CodeProtocolCorruption, "GatewayUserPosition: invalid price")
		}
		side := money.Buy
		if f.Side == 1 {
			side = money.Sell
		}
		s.positions.ApplyFill(context.Background(), f.FillID, f.ContractID, side, f.Size, price, time.Unix(0, f.Timestamp))
		s.stats.Component("stream.user").RecordOperation("user_position")
		return nil

	default:
		s.stats.Component("stream.user").RecordError("unknown_frame_type")
		return fmt.Errorf("user frame: unrecognized type %q", env.Type)
	}
}
