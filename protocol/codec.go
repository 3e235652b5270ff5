package protocol

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/mem"
)

// gRPC content-subtype
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

func init() {
	encoding.RegisterCodecV2(jsonCodec{})
	encoding.RegisterCodecV2(msgpackCodec{})
}

// jsonCodec 以 JSON 作为 gRPC 消息格式，报文与 HTTP 接口一致
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) (mem.BufferSlice, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mem.BufferSlice{mem.SliceBuffer(b)}, nil
}

func (jsonCodec) Unmarshal(data mem.BufferSlice, v any) error {
	return json.Unmarshal(data.Materialize(), v)
}

func (jsonCodec) Name() string { return CodecJSON }

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) (mem.BufferSlice, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mem.BufferSlice{mem.SliceBuffer(b)}, nil
}

func (msgpackCodec) Unmarshal(data mem.BufferSlice, v any) error {
	return msgpack.Unmarshal(data.Materialize(), v)
}

func (msgpackCodec) Name() string { return CodecMsgpack }

// ValidCodec 判断 content-subtype 是否已注册
func ValidCodec(name string) bool {
	return name == CodecJSON || name == CodecMsgpack
}
