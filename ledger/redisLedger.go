package ledger

import (
	"context"
	"strings"

	"github.com/pkl-testcase/wo_backend/models"
	"github.com/pkl-testcase/wo_backend/utils"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "data_layanan"

// RedisLedger keeps the ledger in one hash: field = service_no, value = alamat.
// An empty value stands for a null address.
type RedisLedger struct {
	rdb *redis.Client
	key string
}

func NewRedisLedger(rdb *redis.Client, key string) *RedisLedger {
	if strings.TrimSpace(key) == "" {
		key = DefaultRedisKey
	}
	return &RedisLedger{rdb: rdb, key: key}
}

func (l *RedisLedger) LookupMany(ctx context.Context, serviceNos []string) (map[string]*string, error) {
	result := make(map[string]*string)
	for _, chunk := range utils.Chunk(cleanKeys(serviceNos), MaxLookupBatch) {
		values, err := l.rdb.HMGet(ctx, l.key, chunk...).Result()
		if err != nil {
			return result, utils.NewStorageError("ledger lookup", err)
		}
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				// field missing
				continue
			}
			result[chunk[i]] = nilIfBlank(&s)
		}
	}
	return result, nil
}

func (l *RedisLedger) UpsertOne(ctx context.Context, serviceNo string, alamat *string) error {
	serviceNo = strings.TrimSpace(serviceNo)
	if serviceNo == "" {
		return utils.InvalidInputf("service_no is required")
	}
	err := l.rdb.HSet(ctx, l.key, serviceNo, utils.DereferencePtr(alamat)).Err()
	return utils.NewStorageError("ledger upsert", err)
}

func (l *RedisLedger) UpsertMany(ctx context.Context, entries []models.ServiceAddress) (int, error) {
	entries = dedupeEntries(entries)
	if len(entries) == 0 {
		return 0, nil
	}
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, chunk := range utils.Chunk(entries, MaxLookupBatch) {
			fields := make(map[string]interface{}, len(chunk))
			for _, e := range chunk {
				fields[e.ServiceNo] = utils.DereferencePtr(e.Alamat)
			}
			pipe.HSet(ctx, l.key, fields)
		}
		return nil
	})
	if err != nil {
		return 0, utils.NewStorageError("ledger upsert", err)
	}
	return len(entries), nil
}
