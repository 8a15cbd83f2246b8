package actor

import "errors"

// Directive 重试耗尽后的监督指令
type Directive int

const (
	// DirectivePause 暂停 Actor 并回滚消息，等待显式 Resume 后重新投递
	DirectivePause Directive = iota
	// DirectiveSkip 提交（丢弃）失败消息，继续处理后续消息
	DirectiveSkip
)

// String 返回指令名称
func (d Directive) String() string {
	switch d {
	case DirectivePause:
		return "Pause"
	case DirectiveSkip:
		return "Skip"
	default:
		return "Unknown"
	}
}

// Decider 决策函数类型
type Decider func(err error) Directive

// ============== 内置决策器 ==============

// PausingDecider 暂停决策器
// 对所有错误暂停 Actor（StopOnUnhandledError = true 时的默认值）
func PausingDecider(_ error) Directive {
	return DirectivePause
}

// SkippingDecider 跳过决策器
// 对所有错误丢弃消息继续运行（StopOnUnhandledError = false 时的默认值）
func SkippingDecider(_ error) Directive {
	return DirectiveSkip
}

// ============== 组合决策器 ==============

type deciderRule struct {
	target  error
	decider Decider
}

// CompositeDecider 组合决策器
// 按 errors.Is 匹配错误，选择不同的决策器
type CompositeDecider struct {
	rules    []deciderRule
	fallback Decider
}

// NewCompositeDecider 创建组合决策器
func NewCompositeDecider(fallback Decider) *CompositeDecider {
	if fallback == nil {
		fallback = PausingDecider
	}
	return &CompositeDecider{fallback: fallback}
}

// Register 为特定错误注册决策器，先注册的规则优先
// 构造期间调用，不可与 Decide 并发
func (c *CompositeDecider) Register(target error, decider Decider) *CompositeDecider {
	c.rules = append(c.rules, deciderRule{target: target, decider: decider})
	return c
}

// Decide 实现 Decider
func (c *CompositeDecider) Decide(err error) Directive {
	for _, r := range c.rules {
		if errors.Is(err, r.target) {
			return r.decider(err)
		}
	}
	return c.fallback(err)
}
