package service

import "sync"

// activeRegistry 记录正在处理中的项目 ID，防止同一项目被并发重复执行。
// 归属于 Pipeline 实例，不做全局变量。
type activeRegistry struct {
	mu sync.Mutex
	m  map[string]struct{}
}

func newActiveRegistry() *activeRegistry {
	return &activeRegistry{m: make(map[string]struct{})}
}

// TryAdd 成员检测与插入作为单个临界区完成，两个并发启动不可能同时通过
func (r *activeRegistry) TryAdd(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[projectID]; ok {
		return false
	}
	r.m[projectID] = struct{}{}
	return true
}

func (r *activeRegistry) Remove(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, projectID)
}

func (r *activeRegistry) Contains(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.m[projectID]
	return ok
}

func (r *activeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
