package ledgerrpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"rubriq.co/rubriq/ledger"
	"rubriq.co/rubriq/storage/memfs"
)

func dialTestServer(t *testing.T, srv *Server) *Client {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	RegisterLedgerServer(s, srv)

	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	return &Client{cc: cc, client: NewLedgerClient(cc), Timeout: 2 * time.Second}
}

func TestLedgerRPCRoundTrip(t *testing.T) {
	l, err := ledger.Open(ledger.NewMemorySink())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	archive := memfs.New()

	payload := []byte("sealed evidence payload")
	id, err := archive.Put(payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	first, err := l.Append(ledger.KindCertificate, "plan-2025-014", id.String(), payload)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	second, err := l.Append(ledger.KindRollup, "node-1", "", []byte("rollup payload"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	client := dialTestServer(t, &Server{Ledger: l, Archive: archive})

	n, err := client.Len()
	if err != nil || n != 2 {
		t.Fatalf("Len = %d, %v", n, err)
	}

	head, ok, err := client.Head()
	if err != nil || !ok {
		t.Fatalf("Head: %v %v", ok, err)
	}
	if head.EntryHash != second.EntryHash {
		t.Fatalf("Head = %+v", head)
	}

	e, ok, err := client.Entry(first.Seq)
	if err != nil || !ok {
		t.Fatalf("Entry: %v %v", ok, err)
	}
	if e.EntryHash != first.EntryHash || e.Ref != "plan-2025-014" {
		t.Fatalf("Entry = %+v", e)
	}
	if err := ledger.VerifyPayload(e, payload); err != nil {
		t.Fatalf("VerifyPayload over the wire: %v", err)
	}

	if err := client.Verify(true); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	got, err := client.GetPayload(id.String())
	if err != nil {
		t.Fatalf("GetPayload: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestLedgerRPCNotFound(t *testing.T) {
	l, err := ledger.Open(ledger.NewMemorySink())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	client := dialTestServer(t, &Server{Ledger: l})

	if _, ok, err := client.Head(); err != nil || ok {
		t.Fatalf("Head of empty ledger: %v %v", ok, err)
	}
	if _, ok, err := client.Entry(7); err != nil || ok {
		t.Fatalf("Entry(7): %v %v", ok, err)
	}
	if _, err := client.GetPayload("bafy-nope"); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("GetPayload without archive: %v", err)
	}
}

func TestLedgerRPCInvalidCID(t *testing.T) {
	l, err := ledger.Open(ledger.NewMemorySink())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	client := dialTestServer(t, &Server{Ledger: l, Archive: memfs.New()})

	if _, err := client.GetPayload("not-a-cid"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("GetPayload(invalid): %v", err)
	}
}
