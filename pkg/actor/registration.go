package actor

import (
	"slices"
	"sync"
)

// Registration 消息类型到 Actor 工厂的映射
// 宿主在启动时注册一次，所有 Director 共享
type Registration struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistration 创建空映射
func NewRegistration() *Registration {
	return &Registration{factories: make(map[string]Factory)}
}

// AddActor 将消息类型映射到 Actor 工厂，重复注册覆盖旧值
func (r *Registration) AddActor(kind string, factory Factory) *Registration {
	r.mu.Lock()
	r.factories[kind] = factory
	r.mu.Unlock()
	return r
}

// Factory 查找消息类型对应的工厂
func (r *Registration) Factory(kind string) (Factory, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	return f, ok
}

// Has 消息类型是否已注册
func (r *Registration) Has(kind string) bool {
	_, ok := r.Factory(kind)
	return ok
}

// Kinds 返回已注册的消息类型（排序）
func (r *Registration) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
