package ledgerrpc

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"rubriq.co/rubriq/ledger"
	"rubriq.co/rubriq/model"
)

// Client is a read-only view of a remote ledger.
type Client struct {
	cc     *grpc.ClientConn
	client LedgerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewLedgerClient(cc), Timeout: 0}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Head returns the newest chain entry. The second result is false for an
// empty ledger.
func (c *Client) Head() (ledger.Entry, bool, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Head(ctx, &emptypb.Empty{})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ledger.Entry{}, false, nil
		}
		return ledger.Entry{}, false, err
	}
	e, err := unmarshalEntry(reply)
	return e, err == nil, err
}

func (c *Client) Entry(seq uint64) (ledger.Entry, bool, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.GetEntry(ctx, wrapperspb.UInt64(seq))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ledger.Entry{}, false, nil
		}
		return ledger.Entry{}, false, err
	}
	e, err := unmarshalEntry(reply)
	return e, err == nil, err
}

func (c *Client) Len() (uint64, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Len(ctx, &emptypb.Empty{})
	if err != nil {
		return 0, err
	}
	return reply.GetValue(), nil
}

// Verify asks the engine to re-check its chain. Integrity failures come
// back as errors carrying the server's diagnosis.
func (c *Client) Verify(strict bool) error {
	ctx, cancel := c.ctx()
	defer cancel()

	_, err := c.client.Verify(ctx, wrapperspb.Bool(strict))
	return err
}

// GetPayload fetches the archived payload bytes for a chain entry's CID.
func (c *Client) GetPayload(payloadCID string) ([]byte, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.GetPayload(ctx, wrapperspb.String(payloadCID))
	if err != nil {
		return nil, err
	}
	return reply.GetValue(), nil
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}

func unmarshalEntry(reply *wrapperspb.BytesValue) (ledger.Entry, error) {
	var e ledger.Entry
	if err := json.Unmarshal(reply.GetValue(), &e); err != nil {
		return ledger.Entry{}, model.WrapError(model.KindParse, "RBQ-PARSE-060",
			"remote ledger entry is not valid JSON", err)
	}
	return e, nil
}
