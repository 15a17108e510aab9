package service

import (
	"fmt"
	"sort"
	"sync"
)

type scopeEntry struct {
	mu   sync.Mutex
	refs int
}

// scopeLocker 按排序范围加锁，同一范围内的排序写入串行执行
type scopeLocker struct {
	mu    sync.Mutex
	locks map[string]*scopeEntry
}

func newScopeLocker() *scopeLocker {
	return &scopeLocker{locks: make(map[string]*scopeEntry)}
}

// 进程内共享，分类与网站使用不同的键
var scopeLocks = newScopeLocker()

// Lock 锁定多个范围，按键排序加锁避免死锁，返回解锁函数
func (l *scopeLocker) Lock(keys ...string) func() {
	keys = uniqueSorted(keys)

	entries := make([]*scopeEntry, 0, len(keys))
	l.mu.Lock()
	for _, key := range keys {
		entry, ok := l.locks[key]
		if !ok {
			entry = &scopeEntry{}
			l.locks[key] = entry
		}
		entry.refs++
		entries = append(entries, entry)
	}
	l.mu.Unlock()

	for _, entry := range entries {
		entry.mu.Lock()
	}

	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}
		l.mu.Lock()
		for i, key := range keys {
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(l.locks, key)
			}
		}
		l.mu.Unlock()
	}
}

func uniqueSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// categoryScopeKey 分类同级范围
func categoryScopeKey(parentID *uint) string {
	if parentID == nil {
		return "category:root"
	}
	return fmt.Sprintf("category:%d", *parentID)
}

// siteScopeKey 分类内网站范围
func siteScopeKey(categoryID uint) string {
	return fmt.Sprintf("site:%d", categoryID)
}
