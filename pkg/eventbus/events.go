package eventbus

import "time"

// Event 总线事件
type Event interface {
	// EventName 返回事件名称，用于日志和监控
	EventName() string
}

// ═══════════════════════════════════════════════════════════════════════════
// Actor 事件
// ═══════════════════════════════════════════════════════════════════════════

// ActorRegistered Actor 已注册到 Director
type ActorRegistered struct {
	ActorID    string
	DirectorID string
	At         time.Time
}

// EventName 实现 Event 接口
func (ActorRegistered) EventName() string { return "actor.registered" }

// ActorResumed Actor 已从暂停状态恢复
type ActorResumed struct {
	ActorID    string
	DirectorID string
	At         time.Time
}

// EventName 实现 Event 接口
func (ActorResumed) EventName() string { return "actor.resumed" }

// ActorPaused Actor 因故障暂停
type ActorPaused struct {
	ActorID    string
	DirectorID string
	Err        error
	At         time.Time
}

// EventName 实现 Event 接口
func (ActorPaused) EventName() string { return "actor.paused" }

// ActorIdle Actor 邮箱已清空
type ActorIdle struct {
	ActorID    string
	DirectorID string
	At         time.Time
}

// EventName 实现 Event 接口
func (ActorIdle) EventName() string { return "actor.idle" }

// ActorReceivedMessage Actor 开始处理一条消息
type ActorReceivedMessage struct {
	ActorID    string
	DirectorID string
	At         time.Time
}

// EventName 实现 Event 接口
func (ActorReceivedMessage) EventName() string { return "actor.received_message" }

// ActorDisposed Actor 已释放
type ActorDisposed struct {
	ActorID    string
	DirectorID string
	At         time.Time
}

// EventName 实现 Event 接口
func (ActorDisposed) EventName() string { return "actor.disposed" }

// ═══════════════════════════════════════════════════════════════════════════
// Director / Workspace 事件
// ═══════════════════════════════════════════════════════════════════════════

// DirectorRegistered Director 已加入 Workspace
type DirectorRegistered struct {
	DirectorID  string
	WorkspaceID string
	At          time.Time
}

// EventName 实现 Event 接口
func (DirectorRegistered) EventName() string { return "director.registered" }

// DirectorReceivedMessage Director 接收到一条待投递消息
type DirectorReceivedMessage struct {
	DirectorID string
	At         time.Time
}

// EventName 实现 Event 接口
func (DirectorReceivedMessage) EventName() string { return "director.received_message" }

// DirectorDisposed Director 已从 Workspace 移除并释放
type DirectorDisposed struct {
	DirectorID  string
	WorkspaceID string
	At          time.Time
}

// EventName 实现 Event 接口
func (DirectorDisposed) EventName() string { return "director.disposed" }

// WorkspaceCapacityReached Workspace 已达到最大并行度，未创建新的 Director
type WorkspaceCapacityReached struct {
	WorkspaceID string
	Capacity    int
	At          time.Time
}

// EventName 实现 Event 接口
func (WorkspaceCapacityReached) EventName() string { return "workspace.capacity_reached" }

// ThreadInformation 分发循环运行信息
//
// Go 不暴露线程标识，Loop 为该 Actor 分发循环的启动序号（每次 Resume 重启递增），
// Goroutines 为发布时的 goroutine 数量。
type ThreadInformation struct {
	DirectorID string
	ActorID    string
	Loop       uint64
	Goroutines int
	At         time.Time
}

// EventName 实现 Event 接口
func (ThreadInformation) EventName() string { return "thread.information" }
