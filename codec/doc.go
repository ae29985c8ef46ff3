// Package codec converts message values to and from bytes.
//
// Topics and stores encode every value they send and decode every value
// they read with a Codec. JSON is the default; Avro codecs are built from
// a schema document.
//
//	c, err := codec.LoadAvro("schemas/event.avsc")
//	if err != nil {
//	    return err
//	}
//	b, err := c.Encode(map[string]any{"id": 1})
package codec
