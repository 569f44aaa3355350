package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dyluth/retinue/pkg/wire"
)

// Client is one peer's connection to a relay. It implements the peer runtime's
// transport.
type Client struct {
	base    string
	session string
	peer    wire.PeerID
	http    *http.Client

	ws      *websocket.Conn
	writeMu sync.Mutex

	inbox  chan []byte
	errors chan error
	once   sync.Once
}

// Dial connects peer to session on the relay at baseURL (http:// or https://).
// A host peer becomes the session authority unless another peer already is.
func Dial(ctx context.Context, baseURL, session string, peer wire.PeerID, host bool) (*Client, error) {
	if session == "" || peer.IsNone() {
		return nil, fmt.Errorf("session and peer id are required")
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}

	wsURL := *u
	switch u.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = u.Path + "/sessions/" + url.PathEscape(session) + "/peers/" + url.PathEscape(string(peer))
	if host {
		wsURL.RawQuery = "host=true"
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to relay (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}

	c := &Client{
		base:    u.String(),
		session: session,
		peer:    peer,
		http:    &http.Client{},
		ws:      conn,
		inbox:   make(chan []byte, sendQueue),
		errors:  make(chan error, 10),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.inbox)
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				select {
				case c.errors <- fmt.Errorf("relay connection lost: %w", err):
				default:
				}
			}
			return
		}
		c.inbox <- frame
	}
}

// ID returns the local peer id.
func (c *Client) ID() wire.PeerID { return c.peer }

// Send hands frame to the relay. The relay routes it by the envelope's "to"
// field, which must match to.
func (c *Client) Send(_ context.Context, to wire.PeerID, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to send to %s: %w", to, err)
	}
	return nil
}

// Info fetches the session roster from the relay.
func (c *Client) Info(ctx context.Context) (SessionInfo, error) {
	return FetchInfo(ctx, c.http, c.base, c.session)
}

// FetchInfo reads the roster of session from the relay at baseURL without
// joining it.
func FetchInfo(ctx context.Context, hc *http.Client, baseURL, session string) (SessionInfo, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	u := strings.TrimSuffix(baseURL, "/") + "/sessions/" + url.PathEscape(session)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return SessionInfo{}, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("failed to read roster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SessionInfo{}, fmt.Errorf("failed to read roster: %s", resp.Status)
	}
	var info SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return SessionInfo{}, fmt.Errorf("invalid roster: %w", err)
	}
	return info, nil
}

// Peers lists the session roster.
func (c *Client) Peers(ctx context.Context) ([]wire.PeerID, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return nil, err
	}
	return info.Peers, nil
}

// Authority returns the session authority, or NoPeer.
func (c *Client) Authority(ctx context.Context) (wire.PeerID, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return wire.NoPeer, err
	}
	return info.Authority, nil
}

// Inbox returns the channel inbound frames arrive on. It is closed when the
// connection ends.
func (c *Client) Inbox() <-chan []byte { return c.inbox }

// Errors reports a lost relay connection.
func (c *Client) Errors() <-chan error { return c.errors }

// Close disconnects from the relay. Safe to call multiple times.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
