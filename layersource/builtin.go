package layersource

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"gopkg.in/yaml.v3"
	"rubriq.co/rubriq/model"
)

// Built-in sources for units whose layer values are already computed and
// carried alongside the document. Domain-specific producers register their
// own unit types on top of these.
func init() {
	MustRegister(Source{
		UnitType:    "json-layers",
		Description: "JSON object with one key per layer",
		Produce:     produceJSON,
	})
	MustRegister(Source{
		UnitType:    "yaml-layers",
		Description: "YAML mapping with one key per layer",
		Produce:     produceYAML,
	})
}

func produceJSON(doc []byte) (model.LayerVector, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	var v model.LayerVector
	if err := dec.Decode(&v); err != nil {
		return model.LayerVector{}, model.WrapError(model.KindParse, "RBQ-PARSE-040",
			"layer document is not a valid JSON layer object", err)
	}
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return model.LayerVector{}, model.NewError(model.KindParse, "RBQ-PARSE-040",
			"trailing data after JSON layer object")
	}
	return v, nil
}

func produceYAML(doc []byte) (model.LayerVector, error) {
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)
	var v model.LayerVector
	if err := dec.Decode(&v); err != nil {
		return model.LayerVector{}, model.WrapError(model.KindParse, "RBQ-PARSE-041",
			"layer document is not a valid YAML layer mapping", err)
	}
	return v, nil
}
