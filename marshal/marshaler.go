// Package marshal 提供原始事件序列化/反序列化接口和实现。
//
// Codec 将 core.RawEvent 与 []byte 互相转换，用于会话录制与无头回放。
// 内置 JSON Lines 实现。
package marshal

import (
	"github.com/uniyakcom/pump/core"
)

// Codec 事件编解码器接口
type Codec interface {
	// Marshal 将事件序列化为字节（不含行分隔符）。
	Marshal(evt core.RawEvent) ([]byte, error)

	// Unmarshal 将字节反序列化为事件。
	Unmarshal(data []byte) (core.RawEvent, error)
}
