package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionKey returns the hash key holding a practice session header
func (r *CacheKeyStruct) SessionKey(sessionID string) string {
	return fmt.Sprintf("practice:session:%s", sessionID)
}

// SessionAnswersKey returns the hash key holding a session's answers (question -> option)
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("practice:session:%s:answers", sessionID)
}

// SessionAnsweredAtKey returns the hash key holding answer timestamps (question -> unix nanos)
func (r *CacheKeyStruct) SessionAnsweredAtKey(sessionID string) string {
	return fmt.Sprintf("practice:session:%s:answered_at", sessionID)
}

// SessionIndexKey returns the set key listing every stored session ID
func (r *CacheKeyStruct) SessionIndexKey() string {
	return "practice:sessions"
}

var CacheKey = NewCacheKeyStruct()
