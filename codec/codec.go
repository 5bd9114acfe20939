// Package codec centralizes encoding of dataset manifests and clustering
// results.
//
// Persisted documents record the codec name so readers can select the
// matching codec with ByName; changing the default never breaks old files.
package codec

import (
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// Codec encodes and decodes persisted documents. Implementations must be
// safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default encodes results and manifests. Results carry one assignment per
// frame, so the faster encoder is the default.
var Default Codec = GoJSON{}

// ByName returns a built-in codec by its recorded name.
func ByName(name string) (Codec, bool) {
	c, ok := builtin[name]
	return c, ok
}

var builtin = map[string]Codec{
	JSON{}.Name():   JSON{},
	GoJSON{}.Name(): GoJSON{},
}

// JSON uses encoding/json with indentation, for documents meant to be read
// by people (e.g. `elkan info --json`).
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string { return "json" }

// GoJSON uses github.com/goccy/go-json. Output is compact and not
// HTML-escaped; both codecs read each other's output.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error) {
	return gojson.MarshalWithOption(v, gojson.DisableHTMLEscape())
}
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string { return "go-json" }
