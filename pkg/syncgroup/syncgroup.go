package syncgroup

import (
	"sync"
)

// SyncGroup 是 sync.WaitGroup 的包装器，简化后台 goroutine 的生命周期管理
// 自动配对 Add() 和 Done()，减少遗漏 Done() 的风险
type SyncGroup struct {
	wg sync.WaitGroup

	mu    sync.Mutex
	fns   []func()
	spawn bool
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 添加一个 goroutine 函数；Run() 之后添加的函数会立即启动
func (w *SyncGroup) Add(fn func()) {
	if fn == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.spawn {
		w.start(fn)
		return
	}
	w.fns = append(w.fns, fn)
}

// Run 启动所有已添加的 goroutine
func (w *SyncGroup) Run() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.spawn = true
	for _, fn := range w.fns {
		w.start(fn)
	}
	w.fns = nil
}

func (w *SyncGroup) start(fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// Wait 等待所有 goroutine 完成
func (w *SyncGroup) Wait() {
	w.wg.Wait()
}
