package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/rowguard"
)

// RedisExportStager stages rendered portability exports in Redis under a
// retrieval token (key: export:{token}) with a TTL, so download links expire
// on their own.
type RedisExportStager struct {
	client *redis.Client
	keyFmt string // format string, e.g. "export:%s"
}

func NewRedisExportStager(client *redis.Client) *RedisExportStager {
	return &RedisExportStager{client: client, keyFmt: "export:%s"}
}

func (r *RedisExportStager) key(token string) string {
	return fmt.Sprintf(r.keyFmt, token)
}

func (r *RedisExportStager) StageExport(ctx context.Context, token string, doc []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(token), doc, ttl).Err()
}

func (r *RedisExportStager) FetchExport(ctx context.Context, token string) ([]byte, error) {
	res, err := r.client.Get(ctx, r.key(token)).Bytes()
	if err == redis.Nil {
		return nil, rowguard.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *RedisExportStager) DropExport(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.key(token)).Err()
}
