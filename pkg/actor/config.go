package actor

import (
	"fmt"
	"log/slog"
	"strings"
)

// OverflowPolicy 有界邮箱写满时的处理策略
type OverflowPolicy int

const (
	// BlockProducer 阻塞生产者，直到有空间或 context 取消
	BlockProducer OverflowPolicy = iota
	// DropOldest 丢弃最早的消息后写入
	DropOldest
	// DropNewest 静默丢弃新消息
	DropNewest
	// FailFast 立即返回 ErrMailboxFull
	FailFast
)

// String 返回策略名称
func (p OverflowPolicy) String() string {
	switch p {
	case BlockProducer:
		return "BlockProducer"
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	case FailFast:
		return "FailFast"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy 解析策略名称（不区分大小写）
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blockproducer", "block_producer", "block":
		return BlockProducer, nil
	case "dropoldest", "drop_oldest":
		return DropOldest, nil
	case "dropnewest", "drop_newest":
		return DropNewest, nil
	case "failfast", "fail_fast":
		return FailFast, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnhandledOverflowPolicy, s)
}

// MailboxKind 邮箱实现类型
type MailboxKind int

const (
	// Bounded 有界邮箱，容量 + 溢出策略
	Bounded MailboxKind = iota
	// Unbounded 无界邮箱
	Unbounded
	// CountingQueue 基于计数信号量的有界队列
	CountingQueue
)

// String 返回类型名称
func (k MailboxKind) String() string {
	switch k {
	case Bounded:
		return "Bounded"
	case Unbounded:
		return "Unbounded"
	case CountingQueue:
		return "CountingQueue"
	default:
		return fmt.Sprintf("MailboxKind(%d)", int(k))
	}
}

// ParseMailboxKind 解析邮箱类型名称（不区分大小写）
func ParseMailboxKind(s string) (MailboxKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bounded":
		return Bounded, nil
	case "unbounded":
		return Unbounded, nil
	case "countingqueue", "counting_queue", "concurrentqueue", "concurrent_queue":
		return CountingQueue, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnhandledMailboxKind, s)
}

// Config Director 及其 Actor 的运行配置
type Config struct {
	// MailboxCapacity 邮箱容量，0 表示不限
	MailboxCapacity int
	// OverflowPolicy 邮箱满时的处理策略
	OverflowPolicy OverflowPolicy
	// MailboxKind 邮箱实现类型
	MailboxKind MailboxKind
	// RetryCount 首次失败后的重试次数
	RetryCount int
	// StopOnUnhandledError 重试耗尽后暂停 Actor 并回滚消息；否则丢弃消息继续处理
	StopOnUnhandledError bool
	// Decider 自定义故障分类，为 nil 时由 StopOnUnhandledError 决定
	Decider Decider
	// Logger 自定义日志器
	Logger *slog.Logger
}

// 默认值
const (
	DefaultMailboxCapacity      = 1000
	DefaultRetryCount           = 3
	DefaultStopOnUnhandledError = true
)

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MailboxCapacity:      DefaultMailboxCapacity,
		OverflowPolicy:       BlockProducer,
		MailboxKind:          Bounded,
		RetryCount:           DefaultRetryCount,
		StopOnUnhandledError: DefaultStopOnUnhandledError,
		Logger:               nil, // 使用默认 logger
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.MailboxCapacity < 0 {
		return fmt.Errorf("mailbox capacity must not be negative, got %d", c.MailboxCapacity)
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("retry count must not be negative, got %d", c.RetryCount)
	}
	switch c.OverflowPolicy {
	case BlockProducer, DropOldest, DropNewest, FailFast:
	default:
		return fmt.Errorf("%w: %s", ErrUnhandledOverflowPolicy, c.OverflowPolicy)
	}
	switch c.MailboxKind {
	case Bounded, Unbounded, CountingQueue:
	default:
		return fmt.Errorf("%w: %s", ErrUnhandledMailboxKind, c.MailboxKind)
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Config) decider() Decider {
	if c.Decider != nil {
		return c.Decider
	}
	if c.StopOnUnhandledError {
		return PausingDecider
	}
	return SkippingDecider
}
