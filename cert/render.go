package cert

import (
	"sort"
	"strings"

	"rubriq.co/rubriq/model"
)

// Document is a convenient in-memory representation for producing canonical
// QCF bytes. Rendered bytes are always canonical (section order, key order,
// spacing, and blank lines).
//
// NOTE: this does not perform semantic validation; Seal validates its typed
// inputs before building a Document.
type Document struct {
	Meta   map[string]string
	Unit   map[string]string
	Layers map[string]string
	Score  map[string]string
	Crypto map[string]string
}

// Render produces canonical QCF bytes from a Document.
func Render(doc Document) ([]byte, error) {
	sections := []struct {
		name  string
		pairs map[string]string
	}{
		{name: "META", pairs: doc.Meta},
		{name: "UNIT", pairs: doc.Unit},
		{name: "LAYERS", pairs: doc.Layers},
		{name: "SCORE", pairs: doc.Score},
		{name: "CRYPTO", pairs: doc.Crypto},
	}

	var sb strings.Builder
	sb.WriteString(Preamble)
	sb.WriteString("\n")

	for i, sec := range sections {
		sb.WriteString(sec.name)
		sb.WriteString("\n")

		keys := make([]string, 0, len(sec.pairs))
		for k := range sec.pairs {
			if k == "" {
				return nil, renderErr("empty key")
			}
			if !isASCII(k) {
				return nil, renderErr("non-ASCII key")
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := sec.pairs[k]
			if v == "" {
				return nil, renderErr("empty value")
			}
			if strings.HasPrefix(v, " ") {
				return nil, renderErr("value must not start with a space")
			}
			if strings.Contains(v, "\n") || strings.Contains(v, "\r") {
				return nil, renderErr("value must not contain newlines")
			}
			if strings.HasSuffix(v, " ") || strings.HasSuffix(v, "\t") {
				return nil, renderErr("trailing whitespace forbidden")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteString("\n")
		}

		if i != len(sections)-1 {
			sb.WriteString("\n")
		}
	}

	sb.WriteString(Postamble)
	return []byte(sb.String()), nil
}

func renderErr(msg string) error {
	return model.NewError(model.KindRender, "RBQ-PARSE-030", msg)
}
