package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// DocumentQuestionsKey returns the cache key for a document's extracted
// question list. The list is immutable once extraction finishes, which is
// what makes it safe to cache.
func (r *CacheKeyStruct) DocumentQuestionsKey(documentID uuid.UUID) string {
	return fmt.Sprintf("document:%s:questions", documentID)
}

var CacheKey = NewCacheKeyStruct()
