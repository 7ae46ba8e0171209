package horizonpb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements google.golang.org/grpc/encoding.Codec by marshaling
// through encoding/json. It registers under the name "proto", the content
// subtype gRPC selects by default, so it transparently replaces grpc-go's
// built-in protobuf codec without requiring these message types to
// implement proto.Message / protoreflect.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
