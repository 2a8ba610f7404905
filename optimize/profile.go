// Package optimize 提供事件泵场景配置和推荐
package optimize

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// Auto 自动配置结构
type Auto struct {
	Enabled  bool // 总开关（默认true）
	Coalesce bool // 合并连续 pointer-move
	Recover  bool // 过滤器 panic 保护
}

// Profile 事件泵场景 Profile
type Profile struct {
	Name               string        // 场景名称
	RefreshHz          int           // 刷新率（0=60）
	Cadence            time.Duration // 显式帧间隔（优先于 RefreshHz）
	Rate               int           // 预期输入速率（events/s），用于队列初始容量
	Lat                string        // "low"/"med"/"ultra_low"
	Clock              string        // "ticker"/"manual"
	Cores              int           // CPU核心数
	ShouldSignalOnTick bool          // 指针事件到达后在下一帧通知
	MainThread         bool          // 要求在进程主线程上构造
	Auto               Auto          // 自动配置
}

// ═══════════════════════════════════════════════════════════════════
// 三大核心 Profile
// ═══════════════════════════════════════════════════════════════════

// Display 常规显示器场景
// 用途: 桌面应用、60Hz 面板
// 特点: ticker 帧时钟，连续 move 合并，空闲自动暂停
func Display() *Profile {
	return &Profile{
		Name:      "display",
		RefreshHz: 60,
		Rate:      1000,
		Lat:       "low",
		Clock:     "ticker",
		Cores:     runtime.NumCPU(),
		Auto: Auto{
			Enabled:  true,
			Coalesce: true,
			Recover:  true,
		},
	}
}

// HighRefresh 高刷新率场景
// 用途: 120Hz 面板、手写笔/绘图输入
// 特点: 不合并 move（保留完整轨迹），指针事件到达后每帧通知
func HighRefresh() *Profile {
	return &Profile{
		Name:               "high-refresh",
		RefreshHz:          120,
		Rate:               4000,
		Lat:                "ultra_low",
		Clock:              "ticker",
		Cores:              runtime.NumCPU(),
		ShouldSignalOnTick: true,
		Auto: Auto{
			Enabled:  true,
			Coalesce: false,
			Recover:  true,
		},
	}
}

// Headless 无头场景
// 用途: 测试、回放、离屏渲染
// 特点: 手动帧时钟（由调用方 Fire 出帧），过滤链为恒等变换
func Headless() *Profile {
	return &Profile{
		Name:      "headless",
		RefreshHz: 60,
		Rate:      1000,
		Lat:       "med",
		Clock:     "manual",
		Cores:     runtime.NumCPU(),
		Auto: Auto{
			Enabled: false,
		},
	}
}

// ═══════════════════════════════════════════════════════════════════
// Presets
// ═══════════════════════════════════════════════════════════════════

// Presets 所有预设场景
var Presets = map[string]func() *Profile{
	"display":      Display,
	"high-refresh": HighRefresh,
	"headless":     Headless,
}

// Preset 获取预设Profile（每次返回新副本）；未知名称使用 display
func Preset(name string) *Profile {
	if fn, ok := Presets[name]; ok {
		return fn()
	}
	return Display()
}

// ═════════════════════════════════════════════════════════════════
// 自动检测
// ═════════════════════════════════════════════════════════════════

// EnvRefreshHz 覆盖自动检测刷新率的环境变量
const EnvRefreshHz = "PUMP_REFRESH_HZ"

// AutoDetect 根据运行时环境自动选择配置
//   - 多核 (>= 4 cores) → 不合并 move（CPU 足以处理完整轨迹）
//   - 少核 (< 4 cores ) → 合并 move
//   - PUMP_REFRESH_HZ 设置时覆盖刷新率
func AutoDetect() *Profile {
	p := Display()
	p.Name = "auto"
	if p.Cores >= 4 {
		p.Auto.Coalesce = false
	}
	if v := os.Getenv(EnvRefreshHz); v != "" {
		if hz, err := strconv.Atoi(v); err == nil && hz > 0 {
			p.RefreshHz = hz
		}
	}
	return p
}
