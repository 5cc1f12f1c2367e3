// Package ledgerrpc exposes a ledger read-side over gRPC so auditors can
// follow the chain without filesystem access to the sink. Appends stay
// local to the engine process; the service is deliberately read-only.
package ledgerrpc

import (
	"context"
	"encoding/json"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"rubriq.co/rubriq/compliance"
	"rubriq.co/rubriq/ledger"
	"rubriq.co/rubriq/storage"
)

// Server exposes a ledger over the Ledger gRPC service. Archive is
// optional; without it GetPayload reports FailedPrecondition.
type Server struct {
	UnimplementedLedgerServer
	Ledger  *ledger.Ledger
	Archive storage.CAS
}

func (s *Server) Head(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	e, ok := s.Ledger.Head()
	if !ok {
		return nil, status.Error(codes.NotFound, "ledger is empty")
	}
	return marshalEntry(e)
}

func (s *Server) GetEntry(ctx context.Context, in *wrapperspb.UInt64Value) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	e, ok := s.Ledger.Entry(in.GetValue())
	if !ok {
		return nil, status.Error(codes.NotFound, "no such ledger entry")
	}
	return marshalEntry(e)
}

func (s *Server) Len(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	return wrapperspb.UInt64(uint64(s.Ledger.Len())), nil
}

// Verify re-checks the chain. The request flag selects strict compliance,
// which additionally validates entry structure and signatures.
func (s *Server) Verify(ctx context.Context, in *wrapperspb.BoolValue) (*wrapperspb.BoolValue, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	mode := compliance.Permissive
	if in.GetValue() {
		mode = compliance.Strict
	}
	if err := s.Ledger.CheckIntegrity(mode); err != nil {
		return nil, status.Error(codes.DataLoss, err.Error())
	}
	return wrapperspb.Bool(true), nil
}

func (s *Server) GetPayload(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Archive == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing payload archive")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	b, err := s.Archive.Get(id)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(b), nil
}

func marshalEntry(e ledger.Entry) (*wrapperspb.BytesValue, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, status.Error(codes.Internal, "entry encoding failed")
	}
	return wrapperspb.Bytes(b), nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case err == storage.ErrNotFound:
		return status.Error(codes.NotFound, err.Error())
	case err == storage.ErrInvalidCID:
		return status.Error(codes.InvalidArgument, err.Error())
	case err == storage.ErrCIDMismatch:
		return status.Error(codes.DataLoss, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
