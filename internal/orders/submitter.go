package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	tserrors "github.com/abdoElHodaky/tradingsuite/pkg/errors"
)

// BrokerAck is the Gateway's synchronous response to an order request.
type BrokerAck struct {
	BrokerID string `json:"broker_id"`
	Status   string `json:"status"`
}

// wirePayload is the JSON body submitted for a new order.
type wirePayload struct {
	IdempotencyKey string `json:"idempotency_key"`
	ContractID     string `json:"contract_id"`
	Side           string `json:"side"`
	Size           int64  `json:"size"`
	Type           string `json:"type"`
	LimitPrice     string `json:"limit_price,omitempty"`
	StopPrice      string `json:"stop_price,omitempty"`
	TrailTicks     int64  `json:"trail_ticks,omitempty"`
}

// requester is the subset of Transport the Order Engine depends on,
// kept as an interface so tests inject a fake Gateway.
type requester interface {
	Request(ctx context.Context, class string, method, path string, body io.Reader) (*http.Response, error)
}

// Submitter issues order intents to the Gateway over Transport.
type Submitter struct {
	req requester
}

// NewSubmitter wraps a requester (typically *transport.Transport via an
// adapter) for the Order Engine.
func NewSubmitter(req requester) *Submitter {
	return &Submitter{req: req}
}

// Place submits a new order and decodes the broker's acknowledgment.
func (s *Submitter) Place(ctx context.Context, o *Order) (BrokerAck, error) {
	payload := wirePayload{
		IdempotencyKey: o.IdempotencyKey,
		ContractID:     o.ContractID,
		Side:           o.Side.String(),
		Size:           int64(o.Size),
		Type:           string(o.Type),
	}
	if !o.LimitPrice.IsZero() {
		payload.LimitPrice = o.LimitPrice.String()
	}
	if !o.StopPrice.IsZero() {
		payload.StopPrice = o.StopPrice.String()
	}
	payload.TrailTicks = o.TrailTicks

	body, err := json.Marshal(payload)
	if err != nil {
		return BrokerAck{}, tserrors.Wrap(tserrors.CodeValidation, err, "encode order payload")
	}
	resp, err := s.req.Request(ctx, "orders", http.MethodPost, "/orders", bytes.NewReader(body))
	if err != nil {
		return BrokerAck{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return BrokerAck{}, tserrors.New(tserrors.CodeBrokerRejection, fmt.Sprintf("order rejected: status %d", resp.StatusCode))
	}
	var ack BrokerAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return BrokerAck{}, tserrors.Wrap(tserrors.CodeValidation, err, "decode broker ack")
	}
	return ack, nil
}

// Modify submits a field update for an existing order.
func (s *Submitter) Modify(ctx context.Context, brokerID string, fields map[string]interface{}) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return tserrors.Wrap(tserrors.CodeValidation, err, "encode modify payload")
	}
	resp, err := s.req.Request(ctx, "orders", http.MethodPatch, "/orders/"+brokerID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return tserrors.New(tserrors.CodeNotFound, "order not found: "+brokerID)
	}
	if resp.StatusCode >= 400 {
		return tserrors.New(tserrors.CodeBrokerRejection, fmt.Sprintf("modify rejected: status %d", resp.StatusCode))
	}
	return nil
}

// Cancel requests cancellation of brokerID. Idempotent: cancelling a
// broker-side terminal order returns success.
func (s *Submitter) Cancel(ctx context.Context, brokerID string) error {
	resp, err := s.req.Request(ctx, "orders", http.MethodDelete, "/orders/"+brokerID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode >= 400 {
		return tserrors.New(tserrors.CodeBrokerRejection, fmt.Sprintf("cancel rejected: status %d", resp.StatusCode))
	}
	return nil
}
