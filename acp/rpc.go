package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// anyMessage is a JSON-RPC 2.0 message of any kind. Requests carry a method
// and an id, notifications a method without an id, and responses an id with
// either a result or an error.
type anyMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RequestError   `json:"error,omitempty"`
}

// methodHandler dispatches one incoming request or notification. Request
// handlers return the result to serialize; notification handlers return
// (nil, err) and any result is discarded.
type methodHandler func(ctx context.Context, method string, params json.RawMessage, isNotification bool) (any, error)

// connection is a bidirectional JSON-RPC 2.0 connection over
// newline-delimited JSON. Both sides of ACP use the same engine; only the
// method handler differs.
type connection struct {
	handler methodHandler

	writer    *bufio.Writer
	writeLock sync.Mutex

	nextID  atomic.Int64
	pending map[string]chan *anyMessage
	pendMu  sync.Mutex

	// inflight tracks cancel funcs for requests we're currently serving,
	// keyed by the raw request id, so $/cancel_request can reach them.
	inflight   map[string]context.CancelFunc
	inflightMu sync.Mutex

	// notifs feeds incoming notifications to a single worker so they are
	// handled in arrival order. Streamed session/update sequences depend on
	// that ordering.
	notifs chan *anyMessage

	done    chan struct{}
	errOnce sync.Once
	err     error

	trace func(string)
}

func newConnection(ctx context.Context, handler methodHandler, peerOut io.Writer, peerIn io.Reader) *connection {
	c := &connection{
		handler:  handler,
		writer:   bufio.NewWriter(peerOut),
		pending:  make(map[string]chan *anyMessage),
		inflight: make(map[string]context.CancelFunc),
		notifs:   make(chan *anyMessage, 16),
		done:     make(chan struct{}),
		trace:    func(string) {},
	}
	go c.serveNotifications(ctx)
	go c.receive(ctx, bufio.NewReader(peerIn))
	return c
}

// SetTrace installs a debug trace sink for raw wire traffic. Must be called
// before any messages are exchanged.
func (c *connection) SetTrace(fn func(string)) {
	if fn != nil {
		c.trace = fn
	}
}

// Done is closed once the connection stops processing messages, whether from
// EOF, a broken stream, or context cancellation.
func (c *connection) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal error after Done is closed. It is nil on clean
// EOF.
func (c *connection) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *connection) close(err error) {
	c.errOnce.Do(func() {
		if err == io.EOF {
			err = nil
		}
		c.err = err
		close(c.done)
		c.pendMu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendMu.Unlock()
	})
}

// receive is the main read loop. Each line on the stream is one JSON-RPC
// message.
func (c *connection) receive(ctx context.Context, in *bufio.Reader) {
	for {
		select {
		case <-ctx.Done():
			c.close(ctx.Err())
			return
		default:
		}
		// Messages are newline-delimited JSON. ReadBytes keeps arbitrarily
		// long lines intact, unlike ReadLine.
		line, err := in.ReadBytes('\n')
		if err != nil {
			if len(line) > 0 {
				c.dispatch(ctx, line)
			}
			c.trace(fmt.Sprintf("receive: read error: %v", err))
			c.close(err)
			return
		}
		if len(line) <= 1 {
			continue
		}
		c.dispatch(ctx, line)
	}
}

func (c *connection) dispatch(ctx context.Context, payload []byte) {
	c.trace(fmt.Sprintf("recv: %s", payload))
	var msg anyMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		_ = c.writeError(nil, ErrParseError().WithData(err.Error()))
		return
	}
	switch {
	case msg.Method != "" && msg.ID != nil:
		go c.serveRequest(ctx, &msg)
	case msg.Method == CancelRequestMethod:
		// Cancellation must not queue behind pending notifications.
		var n CancelRequestNotification
		if err := json.Unmarshal(msg.Params, &n); err != nil {
			c.trace(fmt.Sprintf("dispatch: bad %s params: %v", CancelRequestMethod, err))
			return
		}
		c.cancelInflight(string(n.RequestID.raw))
	case msg.Method != "":
		select {
		case c.notifs <- &msg:
		case <-c.done:
		}
	case msg.ID != nil:
		c.settle(&msg)
	default:
		_ = c.writeError(nil, ErrInvalidRequest())
	}
}

// serveRequest runs the handler for one incoming request and writes the
// response. The request can be aborted by a $/cancel_request notification
// carrying its id.
func (c *connection) serveRequest(ctx context.Context, msg *anyMessage) {
	reqCtx, cancel := context.WithCancel(ctx)
	key := string(msg.ID)
	c.inflightMu.Lock()
	c.inflight[key] = cancel
	c.inflightMu.Unlock()
	defer func() {
		c.inflightMu.Lock()
		delete(c.inflight, key)
		c.inflightMu.Unlock()
		cancel()
	}()

	result, err := c.handler(reqCtx, msg.Method, msg.Params, false)
	if reqCtx.Err() != nil {
		_ = c.writeError(msg.ID, ErrRequestCancelled())
		return
	}
	if err != nil {
		_ = c.writeError(msg.ID, toRequestError(err))
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		_ = c.writeError(msg.ID, ErrInternalError().WithData(err.Error()))
		return
	}
	_ = c.writeMessage(&anyMessage{JSONRPC: "2.0", ID: msg.ID, Result: raw})
}

// serveNotifications drains the notification queue one message at a time,
// preserving arrival order. Requests run concurrently; notifications must not.
func (c *connection) serveNotifications(ctx context.Context) {
	for {
		select {
		case msg := <-c.notifs:
			if _, err := c.handler(ctx, msg.Method, msg.Params, true); err != nil {
				// Notifications have no response to carry the error.
				c.trace(fmt.Sprintf("serveNotifications: %s: %v", msg.Method, err))
			}
		case <-c.done:
			return
		}
	}
}

func (c *connection) cancelInflight(key string) {
	c.inflightMu.Lock()
	cancel, ok := c.inflight[key]
	c.inflightMu.Unlock()
	if ok {
		cancel()
	}
}

// settle routes an incoming response to the Call waiting on it.
func (c *connection) settle(msg *anyMessage) {
	key := string(msg.ID)
	c.pendMu.Lock()
	ch, ok := c.pending[key]
	delete(c.pending, key)
	c.pendMu.Unlock()
	if !ok {
		c.trace(fmt.Sprintf("settle: no pending request for id %s", key))
		return
	}
	ch <- msg
}

// Call sends a request to the peer and decodes the response into result,
// which may be nil to discard it. If ctx is cancelled while waiting, a
// $/cancel_request notification is sent for the request and Call keeps
// waiting for the peer's response, which by protocol must still arrive.
func (c *connection) Call(ctx context.Context, method string, params, result any) error {
	id := c.nextID.Add(1)
	idRaw := json.RawMessage(fmt.Sprintf("%d", id))

	ch := make(chan *anyMessage, 1)
	c.pendMu.Lock()
	c.pending[string(idRaw)] = ch
	c.pendMu.Unlock()

	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}
	if err := c.writeMessage(&anyMessage{JSONRPC: "2.0", ID: idRaw, Method: method, Params: rawParams}); err != nil {
		c.pendMu.Lock()
		delete(c.pending, string(idRaw))
		c.pendMu.Unlock()
		return err
	}

	done := ctx.Done()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				if err := c.Err(); err != nil {
					return err
				}
				return fmt.Errorf("connection closed awaiting %s response", method)
			}
			if msg.Error != nil {
				return msg.Error
			}
			if result == nil || len(msg.Result) == 0 {
				return nil
			}
			return json.Unmarshal(msg.Result, result)
		case <-done:
			// Cancel once, then block on the response alone. A closed Done
			// channel would otherwise keep this case ready and spin the loop.
			done = nil
			_ = c.Notify(CancelRequestMethod, &CancelRequestNotification{RequestID: RequestID{raw: idRaw}})
		}
	}
}

// Notify sends a notification to the peer. It does not wait for anything.
func (c *connection) Notify(method string, params any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}
	return c.writeMessage(&anyMessage{JSONRPC: "2.0", Method: method, Params: rawParams})
}

func (c *connection) writeError(id json.RawMessage, reqErr *RequestError) error {
	return c.writeMessage(&anyMessage{JSONRPC: "2.0", ID: id, Error: reqErr})
}

func (c *connection) writeMessage(msg *anyMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}
	c.trace(fmt.Sprintf("send: %s", data))
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if _, err := c.writer.Write(data); err != nil {
		return err
	}
	// The trailing newline marks the end of the message.
	if err := c.writer.WriteByte('\n'); err != nil {
		return err
	}
	return c.writer.Flush()
}
