package keylock

import (
	"strconv"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// KeyLock 按实体键串行化读改写，不同键之间互不阻塞
type KeyLock struct {
	locks cmap.ConcurrentMap[string, *sync.Mutex]
}

func New() *KeyLock {
	return &KeyLock{locks: cmap.New[*sync.Mutex]()}
}

// Lock 获取键对应的互斥锁，返回解锁函数
func (k *KeyLock) Lock(key string) func() {
	mu := k.locks.Upsert(key, nil, func(exist bool, cur *sync.Mutex, _ *sync.Mutex) *sync.Mutex {
		if exist {
			return cur
		}
		return &sync.Mutex{}
	})
	mu.Lock()
	return mu.Unlock
}

// LockID 以数字 ID 为键
func (k *KeyLock) LockID(scope string, id uint) func() {
	return k.Lock(scope + ":" + strconv.FormatUint(uint64(id), 10))
}
