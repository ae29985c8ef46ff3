package codec

import (
	"fmt"
	"os"

	"github.com/hamba/avro/v2"

	apperrors "github.com/kbukum/snapstream/errors"
)

// Avro encodes values with a fixed schema in the Avro binary format.
// Records decode to map[string]any.
type Avro struct {
	schema avro.Schema
}

// NewAvro parses schemaJSON and returns a codec for it.
func NewAvro(schemaJSON string) (*Avro, error) {
	schema, err := avro.Parse(schemaJSON)
	if err != nil {
		return nil, apperrors.InvalidFormat("schema", "avro schema json").WithCause(err)
	}
	return &Avro{schema: schema}, nil
}

// LoadAvro reads an .avsc file and returns a codec for its schema.
func LoadAvro(path string) (*Avro, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NotFound("schema", path).WithCause(err)
	}
	c, err := NewAvro(string(data))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return c, nil
}

// Name implements Codec.
func (c *Avro) Name() string { return "avro" }

// Schema returns the parsed schema.
func (c *Avro) Schema() avro.Schema { return c.schema }

// Encode implements Codec.
func (c *Avro) Encode(v any) ([]byte, error) {
	b, err := avro.Marshal(c.schema, v)
	if err != nil {
		return nil, encodingError(c.Name(), err)
	}
	return b, nil
}

// Decode implements Codec.
func (c *Avro) Decode(b []byte) (any, error) {
	if c.schema.Type() == avro.Record {
		m := map[string]any{}
		if err := avro.Unmarshal(c.schema, b, &m); err != nil {
			return nil, encodingError(c.Name(), err)
		}
		return m, nil
	}
	var v any
	if err := avro.Unmarshal(c.schema, b, &v); err != nil {
		return nil, encodingError(c.Name(), err)
	}
	return v, nil
}
