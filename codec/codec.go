package codec

// Codec serializes values for a transport or store.
type Codec interface {
	// Name identifies the codec in logs and errors.
	Name() string
	// Encode serializes v.
	Encode(v any) ([]byte, error)
	// Decode deserializes b into a generic value: maps, slices, strings,
	// numbers, booleans or nil.
	Decode(b []byte) (any, error)
}

// Raw passes byte slices and strings through unchanged and decodes to []byte.
func Raw() Codec { return rawCodec{} }

type rawCodec struct{}

func (rawCodec) Name() string { return "raw" }

func (rawCodec) Encode(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, encodingError("raw", errUnsupported(v))
	}
}

func (rawCodec) Decode(b []byte) (any, error) { return b, nil }
