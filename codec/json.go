package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "github.com/kbukum/snapstream/errors"
)

// JSON returns the default codec. Numbers decode as json.Number so integer
// values survive a decode/encode round trip unchanged.
func JSON() Codec { return jsonCodec{} }

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, encodingError("json", err)
	}
	return b, nil
}

func (jsonCodec) Decode(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, encodingError("json", err)
	}
	if dec.More() {
		return nil, encodingError("json", fmt.Errorf("trailing data after value"))
	}
	return v, nil
}

func encodingError(codec string, err error) error {
	return apperrors.Encoding(codec, err)
}

func errUnsupported(v any) error {
	return fmt.Errorf("unsupported value of type %T", v)
}
