package hyperpb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the grpc wire-codec name registered by this package. A
// grpc.ClientConn created with grpc.CallContentSubtype(codecName) (or a
// server configured with encoding.RegisterCodec at process start) uses it
// for every message on the connection.
const codecName = "hyperwire"

// wireCodec is a length-delimited JSON codec: it plays the role the
// teacher's internal/wire package plays for the raw TCP framing (an
// 8-byte token + 4-byte length header), generalized to grpc's
// encoding.Codec extension point instead of a hand-rolled net.Conn
// reader/writer. grpc itself already length-prefixes every message on
// the HTTP/2 stream, so the codec only needs to (de)serialize the
// payload; no additional framing is added here.
type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (wireCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(wireCodec{})
}

// CodecName returns the name under which this package's codec is
// registered, for use with grpc.CallContentSubtype.
func CodecName() string { return codecName }
