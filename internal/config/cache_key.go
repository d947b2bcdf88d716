package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestPayloadKey returns the cache key for a published test's participant payload.
// The payload never contains correct answers.
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// TestAnswerKey returns the cache key for a test's answer key hash.
// This hash stays server-side only.
func (r *CacheKeyStruct) TestAnswerKey(testID string) string {
	return fmt.Sprintf("test:%s:key", testID)
}

// TestCodeKey returns the cache key mapping a test invite code to its test ID.
func (r *CacheKeyStruct) TestCodeKey(testCode string) string {
	return fmt.Sprintf("testcode:%s:id", testCode)
}

// InviteStartKey returns the cache key for a participant's attempt start time.
func (r *CacheKeyStruct) InviteStartKey(invite string) string {
	return fmt.Sprintf("invite:%s:started_at", invite)
}

// InviteResultKey returns the cache key for a participant's graded result.
// Presence of this key makes repeated grading calls idempotent.
func (r *CacheKeyStruct) InviteResultKey(invite string) string {
	return fmt.Sprintf("invite:%s:result", invite)
}

var CacheKey = NewCacheKeyStruct()
