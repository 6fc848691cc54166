package cache

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// remoteTier wraps a Redis client. Values are stored compressed with
// the algorithm recorded alongside, so any replica can decode them.
type remoteTier struct {
	client *redis.Client
}

func newRemoteTier(addr string) *remoteTier {
	if addr == "" {
		return nil
	}
	return &remoteTier{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *remoteTier) get(ctx context.Context, key string) ([]byte, Algorithm, bool, error) {
	if r == nil {
		return nil, "", false, nil
	}

	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("redis get: %w", err)
	}

	rec, err := decodeRecord(val)
	if err != nil {
		return nil, "", false, err
	}
	return rec.raw, rec.Algorithm, true, nil
}

func (r *remoteTier) set(ctx context.Context, key string, data []byte, algo Algorithm, ttl time.Duration) error {
	if r == nil {
		return nil
	}
	encoded := encodeRecord(data, algo)
	return r.client.Set(ctx, key, encoded, ttl).Err()
}

func (r *remoteTier) delete(ctx context.Context, key string) error {
	if r == nil {
		return nil
	}
	return r.client.Del(ctx, key).Err()
}

func (r *remoteTier) clearAll(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.client.FlushDB(ctx).Err()
}

// decodedRecord is a stored "algo:base64" record string (see
// encodeRecord) after base64-decoding its payload.
type decodedRecord struct {
	Algorithm Algorithm
	raw       []byte
}

func encodeRecord(data []byte, algo Algorithm) string {
	return string(algo) + ":" + base64.StdEncoding.EncodeToString(data)
}

func decodeRecord(val string) (decodedRecord, error) {
	if len(val) < 1 {
		return decodedRecord{}, fmt.Errorf("empty cache record")
	}
	for i := 0; i < len(val); i++ {
		if val[i] == ':' {
			algo := Algorithm(val[:i])
			raw, err := base64.StdEncoding.DecodeString(val[i+1:])
			if err != nil {
				return decodedRecord{}, fmt.Errorf("decode cache record: %w", err)
			}
			return decodedRecord{Algorithm: algo, raw: raw}, nil
		}
	}
	return decodedRecord{}, fmt.Errorf("malformed cache record")
}
