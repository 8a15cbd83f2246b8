package workspace

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/actor"
)

// Config Workspace 配置
type Config struct {
	// Actor 每个 Director 及其 Actor 的运行配置
	Actor *actor.Config
	// MaxDegreeOfParallelism Director 数量上限
	MaxDegreeOfParallelism int
	// DirectorIdleThreshold 超过该时长未活跃的 Director 可被清理
	DirectorIdleThreshold time.Duration
	// Logger 自定义日志器，为 nil 时使用 Actor.Logger 或 slog.Default()
	Logger *slog.Logger
}

// DefaultDirectorIdleThreshold 默认空闲清理阈值
const DefaultDirectorIdleThreshold = 60 * time.Second

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Actor:                  actor.DefaultConfig(),
		MaxDegreeOfParallelism: runtime.NumCPU(),
		DirectorIdleThreshold:  DefaultDirectorIdleThreshold,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.MaxDegreeOfParallelism < 1 {
		return fmt.Errorf("max degree of parallelism must be at least 1, got %d", c.MaxDegreeOfParallelism)
	}
	if c.DirectorIdleThreshold < 0 {
		return fmt.Errorf("director idle threshold must not be negative, got %s", c.DirectorIdleThreshold)
	}
	if c.Actor != nil {
		if err := c.Actor.Validate(); err != nil {
			return fmt.Errorf("actor config: %w", err)
		}
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	switch {
	case c.Logger != nil:
		return c.Logger
	case c.Actor != nil && c.Actor.Logger != nil:
		return c.Actor.Logger
	default:
		return slog.Default()
	}
}
