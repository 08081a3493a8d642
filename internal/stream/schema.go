package stream

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://rigidsim.local/schemas/"

// Schemas holds the compiled protocol schemas.
type Schemas struct {
	Subscribe *jsonschema.Schema
	Command   *jsonschema.Schema
	Frame     *jsonschema.Schema
}

// LoadSchemas compiles the embedded protocol schemas once per process.
var LoadSchemas = sync.OnceValues(compileSchemas)

func compileSchemas() (*Schemas, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7

	names := []string{"subscribe", "command", "frame"}
	for _, name := range names {
		data, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+name+".schema.json", bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}

	out := make([]*jsonschema.Schema, len(names))
	for i, name := range names {
		s, err := c.Compile(schemaBase + name + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		out[i] = s
	}
	return &Schemas{Subscribe: out[0], Command: out[1], Frame: out[2]}, nil
}

// validateJSON checks raw against s before it is decoded into a message
// struct.
func validateJSON(s *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
