package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"rubriq.co/rubriq/compliance"
	"rubriq.co/rubriq/ledger"
	"rubriq.co/rubriq/ledgerrpc"
	"rubriq.co/rubriq/storage"
	"rubriq.co/rubriq/storage/localfs"
)

func main() {
	fs := flag.NewFlagSet("rubriq-ledgerd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7787", "listen address")
	backend := fs.String("ledger-backend", "file", "Ledger backend: file, sqlite, or badger")
	path := fs.String("ledger", "", "Ledger sink path")
	archiveDir := fs.String("archive", "", "Payload archive directory (optional; enables GetPayload)")

	_ = fs.Parse(os.Args[1:])
	if *path == "" {
		fmt.Fprintln(os.Stderr, "missing --ledger")
		os.Exit(2)
	}

	var sink ledger.Sink
	var err error
	switch *backend {
	case "file":
		sink, err = ledger.OpenFileSink(*path)
	case "sqlite":
		sink, err = ledger.OpenSQLiteSink(*path)
	case "badger":
		sink, err = ledger.OpenBadgerSink(ledger.DefaultBadgerConfig(*path))
	default:
		fmt.Fprintf(os.Stderr, "unknown ledger backend %q\n", *backend)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	l, err := ledger.Open(sink)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = l.Close() }()

	if err := l.CheckIntegrity(compliance.Permissive); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var archive storage.CAS
	if *archiveDir != "" {
		archive, err = localfs.New(*archiveDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer()
	ledgerrpc.RegisterLedgerServer(s, &ledgerrpc.Server{Ledger: l, Archive: archive})

	fmt.Fprintf(os.Stderr, "rubriq-ledgerd listening on %s (backend=%s, %d entries)\n",
		lis.Addr().String(), *backend, l.Len())
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
