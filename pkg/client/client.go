// Package client is the Go client for a sharddb server. It speaks the IPC
// frame protocol over a Unix domain socket and surfaces every invocation
// outcome as a Response carrying a terminal status code.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	sderr "github.com/kartikbazzad/sharddb/internal/errors"
	"github.com/kartikbazzad/sharddb/internal/ipc"
	"github.com/kartikbazzad/sharddb/internal/types"
)

var (
	ErrConnectionFailed = errors.New("failed to connect to server")
	ErrInvalidResponse  = errors.New("invalid response from server")
)

// Options configures a Client.
type Options struct {
	// Role is attached to every invocation for ALLOW checks.
	Role string

	// Timeout bounds each invocation end to end. Zero means the server's
	// default call timeout applies.
	Timeout time.Duration

	// RateLimit caps invocations per second. Zero means unlimited.
	RateLimit float64
	Burst     int
}

// Client is a connection to one sharddb server. It is safe for concurrent
// use; requests on one connection are serialized at the frame level.
type Client struct {
	socketPath string
	opts       Options

	conn      net.Conn
	mu        sync.Mutex
	requestID uint64

	limiter    *rate.Limiter
	retry      *sderr.RetryController
	classifier *sderr.Classifier
	tracker    *sderr.FailureTracker
}

func New(socketPath string, opts Options) *Client {
	c := &Client{
		socketPath: socketPath,
		opts:       opts,
		requestID:  1,
		retry:      sderr.NewRetryController(),
		classifier: sderr.NewClassifier(),
		tracker:    sderr.NewFailureTracker(),
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// SetRole changes the role attached to subsequent invocations.
func (c *Client) SetRole(role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Role = role
}

// Connect dials the server, retrying transient dial failures with backoff.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.conn != nil {
		return nil
	}

	ctx := context.Background()
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	err := c.retry.Retry(ctx, func() error {
		conn, err := net.Dial("unix", c.socketPath)
		if err != nil {
			return err
		}
		c.conn = conn
		return nil
	}, c.classifier)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

// Invoke runs a stored procedure and returns its terminal response. A
// transport failure never loses the outcome taxonomy: the returned response
// carries CONNECTION_LOST when the link dropped mid-call, and the error
// explains why.
func (c *Client) Invoke(ctx context.Context, procedure string, args ...any) (*types.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			resp := types.NewResponse(types.StatusClientErrorTxnNotSent)
			resp.StatusString = err.Error()
			return resp, err
		}
	}

	c.mu.Lock()
	role := c.opts.Role
	c.mu.Unlock()

	body := ipc.InvokeBody{
		Procedure: procedure,
		Role:      role,
		Args:      args,
	}
	if c.opts.Timeout > 0 {
		body.TimeoutMS = c.opts.Timeout.Milliseconds()
	}
	if deadline, ok := ctx.Deadline(); ok {
		if ms := time.Until(deadline).Milliseconds(); body.TimeoutMS == 0 || ms < body.TimeoutMS {
			body.TimeoutMS = ms
		}
	}

	payload, err := json.Marshal(&body)
	if err != nil {
		resp := types.NewResponse(types.StatusClientErrorTxnNotSent)
		resp.StatusString = err.Error()
		return resp, err
	}

	frame := &ipc.RequestFrame{
		Command:      ipc.CmdInvoke,
		InvocationID: types.NewInvocationID(),
		Body:         payload,
	}

	reply, sent, err := c.sendRequest(frame)
	if err != nil {
		if sent {
			resp := types.NewResponse(types.StatusConnectionLost)
			resp.StatusString = "connection lost after the invocation was sent; outcome is unknown"
			return resp, err
		}
		resp := types.NewResponse(types.StatusClientErrorTxnNotSent)
		resp.StatusString = err.Error()
		return resp, err
	}

	resp, err := ipc.DecodeResponseBody(reply.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return resp, nil
}

// Compile submits a CREATE PROCEDURE clause string for a named procedure.
func (c *Client) Compile(procedure, clauses string) error {
	payload, err := json.Marshal(&ipc.CompileBody{Procedure: procedure, Clauses: clauses})
	if err != nil {
		return err
	}

	frame := &ipc.RequestFrame{
		Command:      ipc.CmdCompile,
		InvocationID: types.NewInvocationID(),
		Body:         payload,
	}

	reply, _, err := c.sendRequest(frame)
	if err != nil {
		return err
	}
	if reply.Status != types.StatusSuccess {
		resp, derr := ipc.DecodeResponseBody(reply.Body)
		if derr != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, derr)
		}
		return errors.New(resp.StatusString)
	}
	return nil
}

// Catalog lists the registered procedures and their partitioning specs.
func (c *Client) Catalog() ([]ipc.CatalogEntry, error) {
	frame := &ipc.RequestFrame{
		Command:      ipc.CmdCatalog,
		InvocationID: types.NewInvocationID(),
	}

	reply, _, err := c.sendRequest(frame)
	if err != nil {
		return nil, err
	}
	if reply.Status != types.StatusSuccess {
		return nil, ErrInvalidResponse
	}

	var entries []ipc.CatalogEntry
	if err := json.Unmarshal(reply.Body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return entries, nil
}

// Stats returns the server's invocation counters.
func (c *Client) Stats() (*types.Stats, error) {
	frame := &ipc.RequestFrame{
		Command:      ipc.CmdStats,
		InvocationID: types.NewInvocationID(),
	}

	reply, _, err := c.sendRequest(frame)
	if err != nil {
		return nil, err
	}
	if reply.Status != types.StatusSuccess {
		return nil, ErrInvalidResponse
	}

	stats := &types.Stats{}
	if err := json.Unmarshal(reply.Body, stats); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return stats, nil
}

// Metrics returns the server's exposition-format metrics page.
func (c *Client) Metrics() (string, error) {
	frame := &ipc.RequestFrame{
		Command:      ipc.CmdMetrics,
		InvocationID: types.NewInvocationID(),
	}

	reply, _, err := c.sendRequest(frame)
	if err != nil {
		return "", err
	}
	if reply.Status != types.StatusSuccess {
		return "", ErrInvalidResponse
	}
	return string(reply.Body), nil
}

func (c *Client) nextRequestID() uint64 {
	return atomic.AddUint64(&c.requestID, 1)
}

// sendRequest writes one frame and reads its reply. The sent flag reports
// whether the request left the client before the failure.
func (c *Client) sendRequest(frame *ipc.RequestFrame) (reply *ipc.ResponseFrame, sent bool, err error) {
	frame.RequestID = c.nextRequestID()

	data, err := ipc.EncodeRequest(frame)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		c.tracker.Record(err, c.classifier.Classify(err))
		return nil, false, err
	}

	if err := ipc.WriteFrame(c.conn, data); err != nil {
		c.dropConnLocked()
		c.tracker.Record(err, c.classifier.Classify(err))
		return nil, false, err
	}

	respData, err := ipc.ReadFrame(c.conn)
	if err != nil {
		c.dropConnLocked()
		c.tracker.Record(err, c.classifier.Classify(err))
		return nil, true, err
	}

	resp, err := ipc.DecodeResponse(respData)
	if err != nil {
		c.tracker.Record(err, c.classifier.Classify(err))
		return nil, true, err
	}

	return resp, true, nil
}

// TransportFailures reports how many requests have failed at the transport
// level over the life of this client.
func (c *Client) TransportFailures() uint64 {
	return c.tracker.Failures()
}

func (c *Client) dropConnLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
