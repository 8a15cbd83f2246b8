package actor

import (
	"sync"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// Actor 统计信息
// ═══════════════════════════════════════════════════════════════════════════

// ActorStats Actor 运行时统计信息
type ActorStats struct {
	// 消息计数
	MessagesReceived int64 `json:"messages_received"` // 进入处理的消息数
	MessagesHandled  int64 `json:"messages_handled"`  // 成功处理并提交的消息数
	MessagesFailed   int64 `json:"messages_failed"`   // 重试耗尽的消息数
	Retries          int64 `json:"retries"`           // 重试次数

	// 延迟统计（含重试耗时）
	AverageLatency time.Duration `json:"average_latency"`
	MaxLatency     time.Duration `json:"max_latency"`
	MinLatency     time.Duration `json:"min_latency"`
}

// StatsCollector 线程安全的统计收集器
type StatsCollector struct {
	mu           sync.Mutex
	stats        ActorStats
	totalLatency time.Duration
}

// NewStatsCollector 创建统计收集器
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

// RecordReceived 记录接收消息
func (c *StatsCollector) RecordReceived() {
	c.mu.Lock()
	c.stats.MessagesReceived++
	c.mu.Unlock()
}

// RecordRetry 记录一次重试
func (c *StatsCollector) RecordRetry() {
	c.mu.Lock()
	c.stats.Retries++
	c.mu.Unlock()
}

// RecordHandled 记录成功处理消息
func (c *StatsCollector) RecordHandled(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.MessagesHandled++
	c.totalLatency += latency
	c.stats.AverageLatency = c.totalLatency / time.Duration(c.stats.MessagesHandled)

	if latency > c.stats.MaxLatency {
		c.stats.MaxLatency = latency
	}
	if c.stats.MessagesHandled == 1 || latency < c.stats.MinLatency {
		c.stats.MinLatency = latency
	}
}

// RecordFailed 记录重试耗尽
func (c *StatsCollector) RecordFailed() {
	c.mu.Lock()
	c.stats.MessagesFailed++
	c.mu.Unlock()
}

// Stats 获取统计快照
func (c *StatsCollector) Stats() ActorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
