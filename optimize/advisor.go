// Package optimize advisor推荐引擎
package optimize

import (
	"errors"
	"fmt"
	"time"

	"github.com/uniyakcom/pump/util"
)

// ErrUnknownClock 未知的帧时钟类型
var ErrUnknownClock = errors.New("optimize: unknown clock")

const (
	minRefreshHz = 1
	maxRefreshHz = 1000
)

// Advised 推荐配置
type Advised struct {
	Profile *Profile
	Params  map[string]interface{}
	Clock   string
}

// Advisor 推荐引擎
type Advisor struct{}

// NewAdvisor 创建推荐引擎
func NewAdvisor() *Advisor {
	return &Advisor{}
}

// Advise 根据Profile推荐配置
func (a *Advisor) Advise(p *Profile) (*Advised, error) {
	if p == nil {
		p = Display()
	}
	advised := &Advised{
		Profile: p,
		Params:  make(map[string]interface{}),
		Clock:   p.Clock,
	}

	switch p.Clock {
	case "", "ticker":
		advised.Clock = "ticker"
	case "manual":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownClock, p.Clock)
	}

	// 帧间隔：显式 Cadence 优先，否则由刷新率换算（钳制到 [1, 1000] Hz）
	hz := p.RefreshHz
	if hz <= 0 {
		hz = 60
	}
	if hz < minRefreshHz {
		hz = minRefreshHz
	}
	if hz > maxRefreshHz {
		hz = maxRefreshHz
	}
	cadence := time.Second / time.Duration(hz)
	if p.Cadence > 0 {
		cadence = p.Cadence
	}
	advised.Params["cadence"] = cadence

	// 队列容量：两帧的预期输入量，向上取 2 的幂
	advised.Params["queueHint"] = max(64, util.CeilPow2(p.Rate*2/hz))

	if p.Lat == "ultra_low" || p.ShouldSignalOnTick {
		advised.Params["signalOnTick"] = true
	}

	if p.Auto.Enabled {
		if p.Auto.Coalesce {
			advised.Params["coalesce"] = true
		}
		if p.Auto.Recover {
			advised.Params["recover"] = true
		}
	}

	if p.MainThread {
		advised.Params["mainThread"] = true
	}

	return advised, nil
}
