// backend/pkg/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"exam-system/internal/models"
)

type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{
		client: client,
		ctx:    context.Background(),
	}
}

func testKey(ownerID uint, name string) string {
	return fmt.Sprintf("test:%d:%s", ownerID, name)
}

func (c *RedisCache) SetTest(test *models.Test) error {
	data, err := json.Marshal(test)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, testKey(test.OwnerID, test.Name), data, 24*time.Hour).Err()
}

func (c *RedisCache) GetTest(ownerID uint, name string) (*models.Test, error) {
	data, err := c.client.Get(c.ctx, testKey(ownerID, name)).Bytes()
	if err != nil {
		return nil, err
	}

	var test models.Test
	err = json.Unmarshal(data, &test)
	return &test, err
}

// InvalidateTest drops a cached test after any mutation so readers never
// see a stale MCQ list or status.
func (c *RedisCache) InvalidateTest(ownerID uint, name string) error {
	return c.client.Del(c.ctx, testKey(ownerID, name)).Err()
}

// SetDocumentText keeps extracted document text around so regeneration of a
// single MCQ does not require re-uploading or re-extracting the source.
func (c *RedisCache) SetDocumentText(ownerID uint, documentName, text string) error {
	key := fmt.Sprintf("doctext:%d:%s", ownerID, documentName)
	return c.client.Set(c.ctx, key, text, 24*time.Hour).Err()
}

func (c *RedisCache) GetDocumentText(ownerID uint, documentName string) (string, error) {
	key := fmt.Sprintf("doctext:%d:%s", ownerID, documentName)
	return c.client.Get(c.ctx, key).Result()
}
