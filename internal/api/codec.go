package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes socket frames and snapshot responses.
type Codec interface {
	Name() string
	ContentType() string
	MessageType() int // websocket frame type
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                    { return "json" }
func (jsonCodec) ContentType() string             { return "application/json" }
func (jsonCodec) MessageType() int                { return websocket.TextMessage }
func (jsonCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

// msgpackCodec falls back to json tags so every wire type shares one field
// naming.
type msgpackCodec struct{}

func (msgpackCodec) Name() string        { return "msgpack" }
func (msgpackCodec) ContentType() string { return "application/msgpack" }
func (msgpackCodec) MessageType() int    { return websocket.BinaryMessage }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

var codecs = map[string]Codec{
	"":        jsonCodec{},
	"json":    jsonCodec{},
	"msgpack": msgpackCodec{},
}

// codecFromRequest picks the codec named by ?codec=.
func codecFromRequest(r *http.Request) (Codec, error) {
	name := r.URL.Query().Get("codec")
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownCodec, name)
	}
	return c, nil
}
