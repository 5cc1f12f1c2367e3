// Package cert implements parsing and canonicalization for the Quality
// Certificate Format (QCF), the sealed evidence document produced for every
// scored unit.
package cert

import (
	"bufio"
	"bytes"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"rubriq.co/rubriq/cidutil"
	"rubriq.co/rubriq/model"
)

// SectionOrder defines the canonical order of QCF sections.
var SectionOrder = []string{"META", "UNIT", "LAYERS", "SCORE", "CRYPTO"}

const (
	Preamble  = "-----BEGIN RUBRIQ CERTIFICATE-----"
	Postamble = "-----END RUBRIQ CERTIFICATE-----"

	// SpecTag is the format identifier carried in every META section.
	SpecTag = "rubriq-qcf-1"
)

// Certificate represents a parsed QCF document.
type Certificate struct {
	Sections map[string]Section
	Raw      []byte // canonical bytes
	Signed   []byte // bytes covered by signature (BEGIN..end of SCORE, inclusive)
}

type Section struct {
	Name  string
	Pairs map[string]string
}

func parseErr(ruleID, msg string) error {
	return model.NewError(model.KindParse, ruleID, msg)
}

// Parse parses a QCF document and enforces the v1 canonical serialization
// rules. Non-canonical inputs are rejected: the same logical certificate has
// exactly one byte representation, so CIDs and ledger payload hashes are
// reproducible across independent implementations.
func Parse(data []byte) (*Certificate, error) {
	if !utf8.Valid(data) {
		return nil, parseErr("RBQ-PARSE-001", "certificate must be valid UTF-8")
	}
	if len(data) > 0 && data[len(data)-1] == '\n' {
		return nil, parseErr("RBQ-PARSE-002", "trailing newline not allowed")
	}
	if !bytes.HasPrefix(data, []byte(Preamble)) {
		return nil, parseErr("RBQ-PARSE-003", "missing certificate preamble")
	}
	if !bytes.HasSuffix(data, []byte(Postamble)) {
		return nil, parseErr("RBQ-PARSE-004", "missing certificate postamble")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, parseErr("RBQ-PARSE-005", "CR line endings not allowed")
	}
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, parseErr("RBQ-PARSE-006", "BOM not allowed")
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t') {
			return nil, parseErr("RBQ-PARSE-007", "trailing whitespace forbidden")
		}
	}
	if !bytes.HasPrefix(data, []byte(Preamble+"\n")) && string(data) != Preamble {
		return nil, parseErr("RBQ-PARSE-003", "certificate preamble must be on its own line")
	}

	sections := make(map[string]Section)
	reader := bufio.NewReader(bytes.NewReader(data))
	readLine := func() (string, error) {
		l, err := reader.ReadString('\n')
		if err == io.EOF {
			return strings.TrimRight(l, "\n"), io.EOF
		}
		if err != nil {
			return "", err
		}
		return strings.TrimRight(l, "\n"), nil
	}

	first, err := readLine()
	if err != nil && err != io.EOF {
		return nil, err
	}
	if first != Preamble {
		return nil, parseErr("RBQ-PARSE-003", "certificate preamble must be exact")
	}

	sectionIndex := -1
	var currSection string
	var currPairs map[string]string
	var currKeyOrder []string
	seenSection := map[string]bool{}
	seenAnySection := false
	afterSeparator := false

	flushSection := func() error {
		if currSection == "" {
			return nil
		}
		sorted := append([]string(nil), currKeyOrder...)
		sort.Strings(sorted)
		for i := range sorted {
			if sorted[i] != currKeyOrder[i] {
				return parseErr("RBQ-PARSE-010", "keys not sorted lexicographically")
			}
		}
		sections[currSection] = Section{Name: currSection, Pairs: currPairs}
		currSection = ""
		currPairs = nil
		currKeyOrder = nil
		return nil
	}

	for {
		line, rerr := readLine()
		if rerr != nil && rerr != io.EOF {
			return nil, rerr
		}

		if line == Postamble {
			if afterSeparator {
				return nil, parseErr("RBQ-PARSE-011", "unexpected blank line before postamble")
			}
			if err := flushSection(); err != nil {
				return nil, err
			}
			break
		}

		if isSectionHeader(line) {
			seenAnySection = true
			if currSection != "" {
				return nil, parseErr("RBQ-PARSE-012", "missing blank line between sections")
			}
			if seenSection[line] {
				return nil, parseErr("RBQ-PARSE-013", "duplicate section")
			}
			if err := flushSection(); err != nil {
				return nil, err
			}
			sectionIndex++
			if sectionIndex >= len(SectionOrder) || SectionOrder[sectionIndex] != line {
				return nil, parseErr("RBQ-PARSE-014", "sections missing or out of order")
			}
			if sectionIndex == 0 {
				if afterSeparator {
					return nil, parseErr("RBQ-PARSE-011", "blank line before first section not allowed")
				}
			} else if !afterSeparator {
				return nil, parseErr("RBQ-PARSE-012", "missing blank line between sections")
			}
			afterSeparator = false
			seenSection[line] = true
			currSection = line
			currPairs = make(map[string]string)
			continue
		}

		if !seenAnySection {
			return nil, parseErr("RBQ-PARSE-015", "unexpected content before first section")
		}

		if line == "" {
			if currSection == "" {
				return nil, parseErr("RBQ-PARSE-011", "blank line outside section not allowed")
			}
			if currSection == "CRYPTO" {
				return nil, parseErr("RBQ-PARSE-011", "blank line after CRYPTO section not allowed")
			}
			if afterSeparator {
				return nil, parseErr("RBQ-PARSE-011", "multiple blank lines between sections not allowed")
			}
			if err := flushSection(); err != nil {
				return nil, err
			}
			afterSeparator = true
			continue
		}

		if currSection == "" {
			return nil, parseErr("RBQ-PARSE-015", "content outside section")
		}
		if afterSeparator {
			return nil, parseErr("RBQ-PARSE-014", "expected section header after blank line")
		}
		if !strings.Contains(line, ": ") {
			return nil, parseErr("RBQ-PARSE-016", "invalid key-value formatting")
		}
		kv := strings.SplitN(line, ": ", 2)
		key, val := kv[0], kv[1]
		if key == "" {
			return nil, parseErr("RBQ-PARSE-016", "empty key")
		}
		if !isASCII(key) {
			return nil, parseErr("RBQ-PARSE-017", "non-ASCII key")
		}
		if strings.HasPrefix(val, " ") {
			return nil, parseErr("RBQ-PARSE-016", "value must not start with a space")
		}
		if _, exists := currPairs[key]; exists {
			return nil, parseErr("RBQ-PARSE-018", "duplicate key in section")
		}
		currPairs[key] = val
		currKeyOrder = append(currKeyOrder, key)

		if rerr == io.EOF {
			return nil, parseErr("RBQ-PARSE-004", "missing certificate postamble")
		}
	}

	for _, s := range SectionOrder {
		if !seenSection[s] {
			return nil, parseErr("RBQ-PARSE-014", "sections missing or out of order")
		}
	}

	// Enforce full canonical byte identity by re-rendering and comparing.
	// This makes Parse() strictly reject any non-canonical inputs.
	doc := Document{
		Meta:   sections["META"].Pairs,
		Unit:   sections["UNIT"].Pairs,
		Layers: sections["LAYERS"].Pairs,
		Score:  sections["SCORE"].Pairs,
		Crypto: sections["CRYPTO"].Pairs,
	}
	canonical, rerr := Render(doc)
	if rerr != nil {
		return nil, rerr
	}
	if !bytes.Equal(data, canonical) {
		return nil, parseErr("RBQ-PARSE-019", "non-canonical certificate")
	}

	// Signed bytes: BEGIN line through end of SCORE section, inclusive.
	// Canonical Render() emits exactly one blank line between SCORE and CRYPTO.
	marker := []byte("\nCRYPTO\n")
	idx := bytes.Index(canonical, marker)
	if idx < 0 {
		return nil, parseErr("RBQ-PARSE-014", "cannot determine signature scope")
	}
	signed := canonical[:idx+1]
	return &Certificate{Sections: sections, Raw: canonical, Signed: signed}, nil
}

// CID returns the content identifier for the canonical certificate bytes.
// This is an IPFS-compatible CIDv1 (raw + sha2-256).
func (c *Certificate) CID() string {
	return cidutil.CIDv1RawSHA256(c.Raw)
}

func (c *Certificate) field(section, key string) string {
	if sec, ok := c.Sections[section]; ok {
		return sec.Pairs[key]
	}
	return ""
}

func (c *Certificate) UnitID() string    { return c.field("UNIT", "Unit-ID") }
func (c *Certificate) UnitType() string  { return c.field("UNIT", "Unit-Type") }
func (c *Certificate) EngineID() string  { return c.field("META", "Engine-ID") }
func (c *Certificate) ProfileID() string { return c.field("META", "Profile-ID") }
func (c *Certificate) Label() string     { return c.field("SCORE", "Label") }

// GateReason returns the recorded veto rule, or "" when no gate fired.
func (c *Certificate) GateReason() string { return c.field("SCORE", "Gate-Reason") }

// SupersedesCertCID returns the CID of the certificate this one replaces,
// or "" for a first seal.
func (c *Certificate) SupersedesCertCID() string {
	return c.field("META", "Supersedes-Cert-CID")
}

// SealedAt returns the informational seal timestamp, zero when omitted.
func (c *Certificate) SealedAt() (time.Time, error) {
	v := c.field("META", "Sealed-At")
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, model.WrapError(model.KindParse, "RBQ-PARSE-021", "invalid Sealed-At", err)
	}
	return t, nil
}

// RawScore returns the pre-gate fused score.
func (c *Certificate) RawScore() (float64, error) {
	return model.ParseScore(c.field("SCORE", "Raw-Score"))
}

// FinalScore returns the post-gate score.
func (c *Certificate) FinalScore() (float64, error) {
	return model.ParseScore(c.field("SCORE", "Final-Score"))
}

// Layers reconstructs the layer vector recorded in the LAYERS section.
func (c *Certificate) Layers() (model.LayerVector, error) {
	var v model.LayerVector
	sec, ok := c.Sections["LAYERS"]
	if !ok {
		return v, parseErr("RBQ-PARSE-022", "missing LAYERS section")
	}
	for _, l := range model.Layers {
		raw, ok := sec.Pairs[string(l)]
		if !ok {
			return v, parseErr("RBQ-PARSE-022", "missing layer "+string(l))
		}
		x, err := model.ParseScore(raw)
		if err != nil {
			return v, err
		}
		v = v.WithValue(l, x)
	}
	return v, nil
}

func isSectionHeader(line string) bool {
	for _, s := range SectionOrder {
		if line == s {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
