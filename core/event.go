package core

import (
	"strconv"
	"time"
)

// Kind 原始事件类别（固定枚举）
type Kind uint8

const (
	KindNone Kind = iota
	KindPointerDown
	KindPointerUp
	KindPointerMove
	KindKeyDown
	KindKeyUp
	KindText
	KindScroll
	KindWindow
	KindQuit
)

var kindNames = [...]string{
	KindNone:        "none",
	KindPointerDown: "pointer-down",
	KindPointerUp:   "pointer-up",
	KindPointerMove: "pointer-move",
	KindKeyDown:     "key-down",
	KindKeyUp:       "key-up",
	KindText:        "text",
	KindScroll:      "scroll",
	KindWindow:      "window",
	KindQuit:        "quit",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind 按名称解析事件类别
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return KindNone, false
}

// IsDigitizer 是否为指针类（digitizer）事件
func (k Kind) IsDigitizer() bool {
	switch k {
	case KindPointerDown, KindPointerUp, KindPointerMove:
		return true
	}
	return false
}

// RawEvent 输入源产出的原始事件（值类型，产出后不再修改）
// Timestamp 为输入源时钟的相对时间，与 commit time 同一时基。
type RawEvent struct {
	Payload   []byte
	Source    string
	Timestamp time.Duration
	Kind      Kind
}

// Important 非 move 的事件视为重要事件（按下/抬起/键盘等）
func (e RawEvent) Important() bool {
	return e.Kind != KindNone && e.Kind != KindPointerMove
}
