package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// RunLockKey returns the Redis key guarding a single notifier run per class.
func (r *CacheKeyStruct) RunLockKey(school string, classID int) string {
	return fmt.Sprintf("untis:%s:class:%d:run_lock", school, classID)
}

var CacheKey = NewCacheKeyStruct()
