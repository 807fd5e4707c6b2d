package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"go.uber.org/zap"
)

// Channel names the market-data channels a contract can be subscribed to.
type Channel string

const (
	ChannelDepth  Channel = "depth"
	ChannelTrades Channel = "trades"
	ChannelQuotes Channel = "quotes"
)

// Client maintains the two Gateway hubs: market and user.
type Client struct {
	Market *Hub
	User   *Hub
}

// New builds both hubs. marketURL/userURL construct the token-bearing
// dial URL for each hub; marketFrame/userFrame decode and route frames
// from each.
func New(cfg HubConfig, dialer Dialer,
	marketURL, userURL func(token string) (string, error),
	marketFrame, userFrame FrameHandler,
	bus *eventbus.Bus, registry *tasks.Registry, logger *zap.Logger) *Client {

	return &Client{
		Market: NewHub("market", cfg, dialer, marketURL, marketFrame, bus, registry, logger),
		User:   NewHub("user", cfg, dialer, userURL, userFrame, bus, registry, logger),
	}
}

// Connect opens both hubs with the given token.
func (c *Client) Connect(ctx context.Context, token string) error {
	if err := c.Market.Connect(ctx, token); err != nil {
		return err
	}
	return c.User.Connect(ctx, token)
}

// Disconnect tears down both hubs.
func (c *Client) Disconnect(ctx context.Context) {
	c.Market.Disconnect(ctx)
	c.User.Disconnect(ctx)
}

// IsConnected reports whether both hubs are Connected.
func (c *Client) IsConnected() bool {
	return c.Market.State() == Connected && c.User.State() == Connected
}

// SubscribeMarket subscribes contractID to the given channels on the
// market hub.
func (c *Client) SubscribeMarket(ctx context.Context, contractID string, channels []Channel) error {
	msg, err := json.Marshal(struct {
		Type       string    `json:"type"`
		ContractID string    `json:"contract_id"`
		Channels   []Channel `json:"channels"`
	}{Type: "subscribe_market", ContractID: contractID, Channels: channels})
	if err != nil {
		return err
	}
	return c.Market.Subscribe(ctx, msg)
}

// SubscribeUser subscribes accountID's order/position updates on the user
// hub.
func (c *Client) SubscribeUser(ctx context.Context, accountID string) error {
	msg, err := json.Marshal(struct {
		Type      string `json:"type"`
		AccountID string `json:"account_id"`
	}{Type: "subscribe_user", AccountID: accountID})
	if err != nil {
		return err
	}
	return c.User.Subscribe(ctx, msg)
}

// RotateToken rotates both hubs' tokens atomically (each hub holds its
// own connection lock; see Hub.RotateToken).
func (c *Client) RotateToken(ctx context.Context, newToken string) error {
	if err := c.Market.RotateToken(ctx, newToken); err != nil {
		return fmt.Errorf("market hub: %w", err)
	}
	if err := c.User.RotateToken(ctx, newToken); err != nil {
		return fmt.Errorf("user hub: %w", err)
	}
	return nil
}

// Health summarizes both hubs' connection state for the statistics core.
type Health struct {
	Market State
	User   State
}

func (c *Client) Health() Health {
	return Health{Market: c.Market.State(), User: c.User.State()}
}
