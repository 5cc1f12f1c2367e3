package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"google.golang.org/grpc"

	"rubriq.co/rubriq/cert"
	"rubriq.co/rubriq/compliance"
	"rubriq.co/rubriq/config"
	"rubriq.co/rubriq/fuse"
	"rubriq.co/rubriq/keys"
	"rubriq.co/rubriq/layersource"
	"rubriq.co/rubriq/ledger"
	"rubriq.co/rubriq/ledgerrpc"
	"rubriq.co/rubriq/model"
	"rubriq.co/rubriq/rollup"
	"rubriq.co/rubriq/storage"
	"rubriq.co/rubriq/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "evaluate", "fuse":
		return cmdEvaluate(args[1:], out, errOut)
	case "serve-ledger":
		return cmdServeLedger(args[1:], out, errOut)
	case "seal":
		return cmdSeal(args[1:], out, errOut)
	case "cert":
		return cmdCert(args[1:], out, errOut)
	case "ledger":
		return cmdLedger(args[1:], out, errOut)
	case "rollup":
		return cmdRollup(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "sources":
		return cmdSources(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "rubriq: deterministic quality scoring and evidence ledger CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rubriq evaluate --config <yaml> --profile <id> [--unit-type <t>] <layers-file>")
	fmt.Fprintln(w, "  rubriq seal --config <yaml> --profile <id> --unit-id <id> [--unit-type <t>] [--ledger <path> [--ledger-backend file|sqlite|badger]] [--archive <dir>] [--supersede] [--signer <name> [--signer-role <role>] | --seed-hex <64hex> | --key-file <path>] <layers-file>")
	fmt.Fprintln(w, "  rubriq cert cid <file>")
	fmt.Fprintln(w, "  rubriq cert verify <file>")
	fmt.Fprintln(w, "  rubriq cert validate-supersession --new <file> --old <file>")
	fmt.Fprintln(w, "  rubriq ledger verify --ledger <path> [--ledger-backend file|sqlite|badger] [--mode permissive|strict]")
	fmt.Fprintln(w, "  rubriq ledger head --ledger <path> [--ledger-backend file|sqlite|badger]")
	fmt.Fprintln(w, "  rubriq rollup --level <L> --key <name> --k <penalty> --score id=value [--score ...] [--child id[=weight] ...]")
	fmt.Fprintln(w, "  rubriq key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  rubriq key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  rubriq key list")
	fmt.Fprintln(w, "  rubriq key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  rubriq sources")
	fmt.Fprintln(w, "  rubriq serve-ledger --listen <addr> --ledger <path> [--ledger-backend file|sqlite|badger] [--archive <dir>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - --seed-hex must be 32 bytes (64 hex chars) ed25519 seed")
	fmt.Fprintln(w, "  - keys are stored under ~/.rubriq/keys/<name> (0600 private key files)")
	fmt.Fprintln(w, "  - seal writes canonical certificate bytes to stdout (no trailing newline)")
	fmt.Fprintln(w, "  - without --ledger, seal prints the certificate but anchors nothing")
	fmt.Fprintln(w, "  - gate outcomes are recorded, not errors: a gated unit still seals")
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func openSink(backend, path string) (ledger.Sink, error) {
	switch backend {
	case "file":
		return ledger.OpenFileSink(path)
	case "sqlite":
		return ledger.OpenSQLiteSink(path)
	case "badger":
		return ledger.OpenBadgerSink(ledger.DefaultBadgerConfig(path))
	default:
		return nil, fmt.Errorf("unknown ledger backend %q (expected file, sqlite, or badger)", backend)
	}
}

func loadRuntime(path string, errOut io.Writer) (*config.Runtime, bool) {
	if path == "" {
		fmt.Fprintln(errOut, "missing --config")
		return nil, false
	}
	rt, err := config.LoadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return nil, false
	}
	return rt, true
}

func evaluateUnit(rt *config.Runtime, profileID, unitType, layersPath string, errOut io.Writer) (model.LayerVector, fuse.Result, bool) {
	p, err := rt.Profiles.Get(profileID)
	if err != nil {
		fmt.Fprintf(errOut, "profile: %v\n", err)
		return model.LayerVector{}, fuse.Result{}, false
	}
	doc, err := os.ReadFile(layersPath)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(layersPath), err)
		return model.LayerVector{}, fuse.Result{}, false
	}
	v, err := layersource.Produce(unitType, doc)
	if err != nil {
		fmt.Fprintf(errOut, "layers: %v\n", err)
		return model.LayerVector{}, fuse.Result{}, false
	}
	res, err := fuse.Evaluate(v, p, rt.Gates, rt.Bands)
	if err != nil {
		fmt.Fprintf(errOut, "evaluate: %v\n", err)
		return model.LayerVector{}, fuse.Result{}, false
	}
	return v, res, true
}

func cmdEvaluate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var configPath string
	var profileID string
	var unitType string

	fs.StringVar(&configPath, "config", "", "Evaluation config (YAML)")
	fs.StringVar(&profileID, "profile", "", "Weight profile ID")
	fs.StringVar(&unitType, "unit-type", "json-layers", "Layer source unit type")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: rubriq evaluate --config <yaml> --profile <id> [--unit-type <t>] <layers-file>")
		return 2
	}
	if profileID == "" {
		fmt.Fprintln(errOut, "missing --profile")
		return 2
	}
	rt, ok := loadRuntime(configPath, errOut)
	if !ok {
		return 2
	}

	_, res, ok := evaluateUnit(rt, profileID, unitType, fs.Arg(0), errOut)
	if !ok {
		return 1
	}
	fmt.Fprintf(out, "Raw-Score: %s\n", model.FormatScore(res.Raw))
	fmt.Fprintf(out, "Final-Score: %s\n", model.FormatScore(res.Final))
	fmt.Fprintf(out, "Label: %s\n", res.Label)
	if res.GateReason != fuse.GateNone {
		fmt.Fprintf(out, "Gate-Reason: %s\n", res.GateReason)
	}
	return 0
}

func cmdSeal(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("seal", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var configPath string
	var profileID string
	var unitID string
	var unitType string
	var ledgerPath string
	var ledgerBackend string
	var archiveDir string
	var supersede bool
	var seedHex string
	var signerName string
	var signerRole string
	var keyFile string

	fs.StringVar(&configPath, "config", "", "Evaluation config (YAML)")
	fs.StringVar(&profileID, "profile", "", "Weight profile ID")
	fs.StringVar(&unitID, "unit-id", "", "Unit identifier recorded in the certificate")
	fs.StringVar(&unitType, "unit-type", "json-layers", "Layer source unit type")
	fs.StringVar(&ledgerPath, "ledger", "", "Ledger sink path (anchors the certificate when set)")
	fs.StringVar(&ledgerBackend, "ledger-backend", "file", "Ledger backend: file, sqlite, or badger")
	fs.StringVar(&archiveDir, "archive", "", "Certificate archive directory (defaults to <ledger>.certs)")
	fs.BoolVar(&supersede, "supersede", false, "Replace the unit's current certificate, keeping it archived")
	fs.StringVar(&seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars")
	fs.StringVar(&signerName, "signer", "", "Use a stored key by name (from 'rubriq key init')")
	fs.StringVar(&signerRole, "signer-role", "", "When using --signer, optionally use a derived role key")
	fs.StringVar(&keyFile, "key-file", "", "Path to a seed file (hex) created by 'rubriq key init/derive'")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: rubriq seal --config <yaml> --profile <id> --unit-id <id> [flags] <layers-file>")
		return 2
	}
	if profileID == "" {
		fmt.Fprintln(errOut, "missing --profile")
		return 2
	}
	if unitID == "" {
		fmt.Fprintln(errOut, "missing --unit-id")
		return 2
	}
	if seedHex != "" && (signerName != "" || keyFile != "") {
		fmt.Fprintln(errOut, "conflicting signer flags: --seed-hex cannot be combined with --signer or --key-file")
		return 2
	}
	rt, ok := loadRuntime(configPath, errOut)
	if !ok {
		return 2
	}

	layers, res, ok := evaluateUnit(rt, profileID, unitType, fs.Arg(0), errOut)
	if !ok {
		return 1
	}

	input := cert.SealInput{
		Record: model.UnitRecord{
			UnitID:    unitID,
			UnitType:  unitType,
			ProfileID: profileID,
			Layers:    layers,
		},
		Result: res,
	}
	if rt.EngineID != "" {
		input.EngineID = rt.EngineID
	}

	if seedHex != "" || signerName != "" || keyFile != "" {
		ks, err := keys.CreateKeyStore("")
		if err != nil {
			fmt.Fprintf(errOut, "keys: %v\n", err)
			return 1
		}
		seed, err := ks.LoadSeed(seedHex, signerName, signerRole, keyFile)
		if err != nil {
			fmt.Fprintf(errOut, "invalid signer: %v\n", err)
			return 2
		}
		input.Sign = &keys.SignerOptions{Ed25519Key: ed25519.NewKeyFromSeed(seed)}
	}

	if ledgerPath == "" {
		c, err := cert.Seal(input)
		if err != nil {
			fmt.Fprintf(errOut, "seal: %v\n", err)
			return 1
		}
		fmt.Fprintf(errOut, "Cert-CID: %s\n", c.CID())
		_, _ = out.Write(c.Raw)
		return 0
	}

	sink, err := openSink(ledgerBackend, ledgerPath)
	if err != nil {
		fmt.Fprintf(errOut, "ledger: %v\n", err)
		return 1
	}
	l, err := ledger.Open(sink)
	if err != nil {
		fmt.Fprintf(errOut, "ledger: %v\n", err)
		return 1
	}
	defer func() { _ = l.Close() }()

	if archiveDir == "" {
		archiveDir = ledgerPath + ".certs"
	}
	cas, err := localfs.New(archiveDir)
	if err != nil {
		fmt.Fprintf(errOut, "archive: %v\n", err)
		return 1
	}
	store := cert.NewStore(l, cas)

	sealFn := store.Seal
	if supersede {
		sealFn = store.Reseal
	}
	c, e, err := sealFn(input)
	if err != nil {
		fmt.Fprintf(errOut, "seal: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "Cert-CID: %s\n", c.CID())
	fmt.Fprintf(errOut, "Ledger-Seq: %d\n", e.Seq)
	fmt.Fprintf(errOut, "Entry-Hash: %s\n", e.EntryHash)
	_, _ = out.Write(c.Raw)
	return 0
}

func cmdCert(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: rubriq cert <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: cid, verify, validate-supersession")
		return 2
	}
	switch args[0] {
	case "cid":
		fs := flag.NewFlagSet("cert cid", flag.ContinueOnError)
		fs.SetOutput(errOut)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: rubriq cert cid <file>")
			return 2
		}
		c, ok := readCert(fs.Arg(0), errOut)
		if !ok {
			return 1
		}
		_, _ = fmt.Fprintln(out, c.CID())
		return 0
	case "verify":
		fs := flag.NewFlagSet("cert verify", flag.ContinueOnError)
		fs.SetOutput(errOut)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: rubriq cert verify <file>")
			return 2
		}
		c, ok := readCert(fs.Arg(0), errOut)
		if !ok {
			return 1
		}
		if err := c.Verify(); err != nil {
			fmt.Fprintf(errOut, "invalid: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, "OK")
		return 0
	case "validate-supersession":
		fs := flag.NewFlagSet("cert validate-supersession", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var newPath string
		var oldPath string
		fs.StringVar(&newPath, "new", "", "Replacement certificate file")
		fs.StringVar(&oldPath, "old", "", "Superseded certificate file")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if newPath == "" || oldPath == "" {
			fmt.Fprintln(errOut, "usage: rubriq cert validate-supersession --new <file> --old <file>")
			return 2
		}
		newCert, ok := readCert(newPath, errOut)
		if !ok {
			return 1
		}
		oldCert, ok := readCert(oldPath, errOut)
		if !ok {
			return 1
		}
		if err := cert.ValidateSupersession(newCert, oldCert); err != nil {
			fmt.Fprintf(errOut, "invalid: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, "OK")
		return 0
	default:
		fmt.Fprintf(errOut, "unknown cert subcommand: %s\n", args[0])
		return 2
	}
}

func readCert(path string, errOut io.Writer) (*cert.Certificate, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(path), err)
		return nil, false
	}
	c, err := cert.Parse(b)
	if err != nil {
		fmt.Fprintf(errOut, "invalid certificate: %v\n", err)
		return nil, false
	}
	return c, true
}

func cmdLedger(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: rubriq ledger <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: verify, head")
		return 2
	}
	sub := args[0]

	fs := flag.NewFlagSet("ledger "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var ledgerPath string
	var ledgerBackend string
	var mode string
	fs.StringVar(&ledgerPath, "ledger", "", "Ledger sink path")
	fs.StringVar(&ledgerBackend, "ledger-backend", "file", "Ledger backend: file, sqlite, or badger")
	fs.StringVar(&mode, "mode", "permissive", "Compliance mode: permissive or strict")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if ledgerPath == "" {
		fmt.Fprintln(errOut, "missing --ledger")
		return 2
	}

	sink, err := openSink(ledgerBackend, ledgerPath)
	if err != nil {
		fmt.Fprintf(errOut, "ledger: %v\n", err)
		return 1
	}
	l, err := ledger.Open(sink)
	if err != nil {
		fmt.Fprintf(errOut, "ledger: %v\n", err)
		return 1
	}
	defer func() { _ = l.Close() }()

	switch sub {
	case "verify":
		var m compliance.ComplianceMode
		switch strings.ToLower(strings.TrimSpace(mode)) {
		case "", "permissive":
			m = compliance.Permissive
		case "strict":
			m = compliance.Strict
		default:
			fmt.Fprintln(errOut, "invalid --mode (expected permissive or strict)")
			return 2
		}
		if err := l.CheckIntegrity(m); err != nil {
			if idx := model.ErrorIndex(err); idx >= 0 {
				fmt.Fprintf(errOut, "invalid at entry %d: %v\n", idx, err)
			} else {
				fmt.Fprintf(errOut, "invalid: %v\n", err)
			}
			return 1
		}
		fmt.Fprintf(out, "OK (%d entries)\n", l.Len())
		return 0
	case "head":
		e, ok := l.Head()
		if !ok {
			fmt.Fprintln(errOut, "ledger is empty")
			return 1
		}
		b, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			fmt.Fprintf(errOut, "encode: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, string(b))
		return 0
	default:
		fmt.Fprintf(errOut, "unknown ledger subcommand: %s\n", sub)
		return 2
	}
}

func cmdServeLedger(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("serve-ledger", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var listen string
	var ledgerPath string
	var ledgerBackend string
	var archiveDir string

	fs.StringVar(&listen, "listen", "127.0.0.1:7787", "listen address")
	fs.StringVar(&ledgerPath, "ledger", "", "Ledger sink path")
	fs.StringVar(&ledgerBackend, "ledger-backend", "file", "Ledger backend: file, sqlite, or badger")
	fs.StringVar(&archiveDir, "archive", "", "Payload archive directory (optional; enables GetPayload)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if ledgerPath == "" {
		fmt.Fprintln(errOut, "missing --ledger")
		return 2
	}

	sink, err := openSink(ledgerBackend, ledgerPath)
	if err != nil {
		fmt.Fprintf(errOut, "ledger: %v\n", err)
		return 1
	}
	l, err := ledger.Open(sink)
	if err != nil {
		fmt.Fprintf(errOut, "ledger: %v\n", err)
		return 1
	}
	defer func() { _ = l.Close() }()
	if err := l.CheckIntegrity(compliance.Permissive); err != nil {
		fmt.Fprintf(errOut, "ledger: %v\n", err)
		return 1
	}

	var archive storage.CAS
	if archiveDir != "" {
		archive, err = localfs.New(archiveDir)
		if err != nil {
			fmt.Fprintf(errOut, "archive: %v\n", err)
			return 1
		}
	}

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		fmt.Fprintf(errOut, "listen: %v\n", err)
		return 1
	}
	defer lis.Close()

	s := grpc.NewServer()
	ledgerrpc.RegisterLedgerServer(s, &ledgerrpc.Server{Ledger: l, Archive: archive})

	fmt.Fprintf(errOut, "rubriq serve-ledger listening on %s (backend=%s, %d entries)\n",
		lis.Addr().String(), ledgerBackend, l.Len())
	if err := s.Serve(lis); err != nil {
		fmt.Fprintf(errOut, "serve: %v\n", err)
		return 1
	}
	_ = out
	return 0
}

type scoreMap map[string]float64

func (m scoreMap) UnitScore(id string) (float64, bool) {
	s, ok := m[id]
	return s, ok
}

func cmdRollup(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("rollup", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var level string
	var key string
	var penalty float64
	var scoresKV stringList
	var childrenKV stringList

	fs.StringVar(&level, "level", "", "Aggregation level: DIMENSION, AREA, CLUSTER, or MACRO")
	fs.StringVar(&key, "key", "", "Node key (what this node aggregates)")
	fs.Float64Var(&penalty, "k", 0, "Imbalance penalty (>= 0)")
	fs.Var(&scoresKV, "score", "Child score as id=value (repeatable)")
	fs.Var(&childrenKV, "child", "Child reference as id or id=weight (repeatable; defaults to every --score id)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if level == "" {
		fmt.Fprintln(errOut, "missing --level")
		return 2
	}
	if key == "" {
		fmt.Fprintln(errOut, "missing --key")
		return 2
	}
	if len(scoresKV) == 0 {
		fmt.Fprintln(errOut, "missing --score")
		return 2
	}

	scores := scoreMap{}
	for _, it := range scoresKV {
		id, raw, ok := strings.Cut(it, "=")
		if !ok || id == "" {
			fmt.Fprintf(errOut, "invalid --score %q (expected id=value)\n", it)
			return 2
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --score %q: %v\n", it, err)
			return 2
		}
		scores[id] = v
	}

	var children []rollup.ChildRef
	if len(childrenKV) == 0 {
		ids := make([]string, 0, len(scores))
		for id := range scores {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			children = append(children, rollup.ChildRef{ID: id})
		}
	} else {
		for _, it := range childrenKV {
			id, raw, weighted := strings.Cut(it, "=")
			if id == "" {
				fmt.Fprintf(errOut, "invalid --child %q\n", it)
				return 2
			}
			ref := rollup.ChildRef{ID: id}
			if weighted {
				w, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					fmt.Fprintf(errOut, "invalid --child %q: %v\n", it, err)
					return 2
				}
				ref.Weight = w
			}
			children = append(children, ref)
		}
	}

	l, err := ledger.Open(ledger.NewMemorySink())
	if err != nil {
		fmt.Fprintf(errOut, "ledger: %v\n", err)
		return 1
	}
	agg, err := rollup.New(scores, penalty, l)
	if err != nil {
		fmt.Fprintf(errOut, "rollup: %v\n", err)
		return 2
	}
	n, err := agg.Aggregate(rollup.Level(strings.ToUpper(strings.TrimSpace(level))), key, children)
	if err != nil {
		fmt.Fprintf(errOut, "rollup: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "Node-ID: %s\n", n.ID)
	fmt.Fprintf(out, "Level: %s\n", n.Level)
	fmt.Fprintf(out, "Key: %s\n", n.Key)
	fmt.Fprintf(out, "Mean: %s\n", model.FormatScore(model.RoundScore(n.Mean)))
	fmt.Fprintf(out, "Variance: %s\n", model.FormatScore(model.RoundScore(n.Variance)))
	fmt.Fprintf(out, "Score: %s\n", model.FormatScore(n.Score))
	return 0
}

func cmdSources(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("sources", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	for _, s := range layersource.List() {
		if s.Description == "" {
			fmt.Fprintf(out, "%s\n", s.UnitType)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", s.UnitType, s.Description)
	}
	return 0
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "rubriq key: minimal local key management (KMS-lite)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rubriq key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  rubriq key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  rubriq key list")
	fmt.Fprintln(w, "  rubriq key export --name <name> [--role <role>]")
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var seedHex string
	var force bool

	fs.StringVar(&name, "name", "", "Key name (directory under ~/.rubriq/keys)")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional ed25519 seed as 64 hex chars (for reproducible demos)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}

	var seed []byte
	if seedHex != "" {
		var derr error
		seed, derr = keys.ParseSeedHex(seedHex)
		if derr != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", derr)
			return 2
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	engineKey, rootPath, err := ks.InitializeRootKey(name, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created root key: %s\n", engineKey)
	fmt.Fprintf(out, "Stored at: %s\n", rootPath)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var from string
	var role string
	var force bool

	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&role, "role", "", "Role identifier (e.g. engine, auditor)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if from == "" {
		fmt.Fprintln(errOut, "missing --from")
		return 2
	}
	if role == "" {
		fmt.Fprintln(errOut, "missing --role")
		return 2
	}
	if err := keys.CheckKeyName(from); err != nil {
		fmt.Fprintf(errOut, "invalid --from: %v\n", err)
		return 2
	}
	if err := keys.CheckRole(role); err != nil {
		fmt.Fprintf(errOut, "invalid --role: %v\n", err)
		return 2
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	engineKey, rolePath, err := ks.DeriveKeyFromRole(from, role, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive role key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created role key: %s\n", engineKey)
	fmt.Fprintf(out, "Stored at: %s\n", rolePath)
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var role string

	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&role, "role", "", "Optional role (if set, exports derived role key)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	if role != "" {
		if err := keys.CheckRole(role); err != nil {
			fmt.Fprintf(errOut, "invalid --role: %v\n", err)
			return 2
		}
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	engineKey, err := ks.ExportKey(name, role)
	if err != nil {
		fmt.Fprintf(errOut, "export key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, engineKey)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.ListKeys()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\n", e.Identifier)
		for _, r := range e.Permissions {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	return 0
}
