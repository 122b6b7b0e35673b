package bucketing

import (
	"hash"
	"sync"
	"time"

	"qa-service/internal/config"

	"github.com/spaolacci/murmur3"
)

type BucketingManager struct {
	userBuckets int
	hasherPool  sync.Pool
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	return newBucketingManager(cfg.Bucketing.UserBuckets)
}

func newBucketingManager(userBuckets int) *BucketingManager {
	if userBuckets <= 0 {
		userBuckets = 1
	}
	bm := &BucketingManager{userBuckets: userBuckets}

	// Create pool of hash functions to avoid allocation overhead
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}
	return bm
}

// GetUserBucket returns a consistent bucket for a key (0 to userBuckets-1)
func (bm *BucketingManager) GetUserBucket(key string) int {
	return int(bm.getHash(key) % uint64(bm.userBuckets))
}

// GetDateBucket returns the UTC date partition for a timestamp
func (bm *BucketingManager) GetDateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (bm *BucketingManager) GetUserBuckets() int {
	return bm.userBuckets
}

func (bm *BucketingManager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
