package stream

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the minimal surface a Hub needs from a websocket
// connection; *websocket.Conn satisfies it directly. Abstracting it lets
// tests drive the hub's reconnect/backpressure logic without a socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens a Conn to a hub URL. The Gateway requires the session
// token as a URL query parameter, an acknowledged platform constraint;
// implementations must never log the raw URL.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// GorillaDialer is the production Dialer, built on gorilla/websocket as
// an outbound client dialer.
type GorillaDialer struct {
	Dialer websocket.Dialer
}

func NewGorillaDialer() *GorillaDialer {
	return &GorillaDialer{Dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second}}
}

func (d *GorillaDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	conn, _, err := d.Dialer.DialContext(ctx, rawURL, http.Header{})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// RedactURL strips the token query parameter for any log line a caller
// wants to emit about a hub URL: the token must never be logged.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.Index(rawURL, "?"); i >= 0 {
			return rawURL[:i] + "?<redacted>"
		}
		return "<unparseable>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "<redacted>")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
