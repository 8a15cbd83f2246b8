package actor

import (
	"context"
	"sync"
)

// gate 暂停闸门
// 打开时 Wait 立即返回；关闭时 Wait 挂起直到重新打开或 ctx 取消
type gate struct {
	mu   sync.Mutex
	open bool
	ch   chan struct{} // 打开状态下为已关闭的 channel
}

func newGate() *gate {
	ch := make(chan struct{})
	close(ch)
	return &gate{open: true, ch: ch}
}

// Wait 在同一挂起点等待闸门打开或 ctx 取消
func (g *gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open 打开闸门，返回状态是否发生变化
func (g *gate) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open {
		return false
	}
	g.open = true
	close(g.ch)
	return true
}

// Close 关闭闸门，返回状态是否发生变化
func (g *gate) Close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return false
	}
	g.open = false
	g.ch = make(chan struct{})
	return true
}

// IsOpen 闸门是否打开
func (g *gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}
