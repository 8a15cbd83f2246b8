package actor

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"
)

// Message Actor 消息接口
// 消息发送后不可修改
type Message interface {
	// Kind 返回消息类型标识，用于查找 Actor 工厂
	Kind() string
	// PartitionKey 返回分区键，与 Kind 一起决定目标 Actor 标识
	PartitionKey() string
}

// Actor Actor 接口
// 同一 Actor 的 Receive 永远不会被并发调用
type Actor interface {
	// Receive 处理接收到的消息
	// 返回错误会触发重试，重试耗尽后交由 Decider 决定暂停或跳过
	Receive(ctx *Context, msg Message) error

	// OnError 重试耗尽后的观察钩子，自身的失败不会被继续处理
	OnError(actorID string, msg Message, err error)
}

// BaseActor 基础 Actor 实现
// 提供默认的空实现，方便嵌入
type BaseActor struct{}

// Receive 默认实现，不处理任何消息
func (b *BaseActor) Receive(_ *Context, _ Message) error { return nil }

// OnError 默认实现，忽略错误
func (b *BaseActor) OnError(_ string, _ Message, _ error) {}

// ReceiveFunc 函数式 Actor，便于快速创建简单 Actor
type ReceiveFunc func(ctx *Context, msg Message) error

// Receive 实现 Actor 接口
func (f ReceiveFunc) Receive(ctx *Context, msg Message) error {
	return f(ctx, msg)
}

// OnError 实现 Actor 接口
func (f ReceiveFunc) OnError(_ string, _ Message, _ error) {}

// Factory 创建 Actor 实例
type Factory func() Actor

// IdentityFunc 由消息推导目标 Actor 标识
type IdentityFunc func(msg Message) string

// DefaultIdentity 默认标识："<kind>|<partition key>"
func DefaultIdentity(msg Message) string {
	return msg.Kind() + "|" + msg.PartitionKey()
}

// Context Actor 执行上下文
// 每条消息构造一次，字段是投递时刻的快照
type Context struct {
	// DirectorID 所属 Director 标识
	DirectorID string
	// ActorID 当前 Actor 标识
	ActorID string
	// IsPaused 是否处于暂停状态
	IsPaused bool
	// PendingMessages 邮箱中待处理消息数（含当前消息）
	PendingMessages int
	// LastMessageAt 最后一次接收消息的时间
	LastMessageAt time.Time

	ctx   context.Context
	clock clock.PassiveClock
	// director 非拥有引用，仅用于向外发送消息，不参与生命周期
	director *Director
}

// Context 获取 Go context，Actor 被释放时取消
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// HasReceivedMessageWithin 最近 d 时间内是否接收过消息，按所属 Director 的时钟计算
func (c *Context) HasReceivedMessageWithin(d time.Duration) bool {
	if c.clock == nil {
		return time.Since(c.LastMessageAt) < d
	}
	return c.clock.Since(c.LastMessageAt) < d
}

// Send 向另一个 Actor 发送消息
// Director 配置了路由器时经由路由器投递，否则投递到所属 Director
func (c *Context) Send(msg Message) error {
	if c.director == nil {
		return fmt.Errorf("actor %s: director not available", c.ActorID)
	}
	return c.director.route(c.Context(), msg)
}

// ContainsActor 所属 Director 是否已托管该消息对应的 Actor
func (c *Context) ContainsActor(msg Message) bool {
	if c.director == nil {
		return false
	}
	return c.director.ContainsActor(msg)
}

// ============== 通用消息类型 ==============

// SimpleMessage 简单消息，用于快速创建消息
type SimpleMessage struct {
	kind    string
	key     string
	Payload any
}

// NewSimpleMessage 创建简单消息
func NewSimpleMessage(kind, key string, payload any) *SimpleMessage {
	return &SimpleMessage{kind: kind, key: key, Payload: payload}
}

// Kind 实现 Message 接口
func (m *SimpleMessage) Kind() string { return m.kind }

// PartitionKey 实现 Message 接口
func (m *SimpleMessage) PartitionKey() string { return m.key }

// String 返回消息的可读表示
func (m *SimpleMessage) String() string {
	return fmt.Sprintf("%s|%s", m.kind, m.key)
}
