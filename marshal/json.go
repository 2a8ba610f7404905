package marshal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uniyakcom/pump/core"
)

// jsonEnvelope JSON 序列化信封
type jsonEnvelope struct {
	Kind      string `json:"kind"`
	Source    string `json:"source,omitempty"`
	Timestamp int64  `json:"ts"` // 纳秒
	Payload   []byte `json:"payload,omitempty"`
}

// JSONCodec JSON 编解码器
type JSONCodec struct{}

// Marshal 将事件序列化为 JSON。
func (JSONCodec) Marshal(evt core.RawEvent) ([]byte, error) {
	return json.Marshal(jsonEnvelope{
		Kind:      evt.Kind.String(),
		Source:    evt.Source,
		Timestamp: int64(evt.Timestamp),
		Payload:   evt.Payload,
	})
}

// Unmarshal 将 JSON 反序列化为事件。
func (JSONCodec) Unmarshal(data []byte) (core.RawEvent, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return core.RawEvent{}, err
	}
	kind, ok := core.ParseKind(env.Kind)
	if !ok {
		return core.RawEvent{}, fmt.Errorf("marshal: unknown event kind %q", env.Kind)
	}
	return core.RawEvent{
		Kind:      kind,
		Source:    env.Source,
		Timestamp: time.Duration(env.Timestamp),
		Payload:   env.Payload,
	}, nil
}
