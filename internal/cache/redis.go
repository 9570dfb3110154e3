// Package cache stores JSON documents in Redis under structured keys of the
// form "kind:field:value:field:value:" and looks them up by field.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/extools/internal/config"
)

const sep = ":"

// Field is one name/value segment of a structured key
type Field struct {
	Name  string
	Value string
}

// F is shorthand for Field{name, value}
func F(name, value string) Field {
	return Field{Name: name, Value: value}
}

// Key builds "kind:name:value:...:". The trailing separator lets a lookup
// pattern match the last field like any other.
func Key(kind string, fields ...Field) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteString(sep)
	for _, f := range fields {
		b.WriteString(f.Name)
		b.WriteString(sep)
		b.WriteString(f.Value)
		b.WriteString(sep)
	}
	return b.String()
}

// Pattern is the SCAN match expression for keys containing f
func Pattern(f Field) string {
	return "*" + sep + f.Name + sep + f.Value + sep + "*"
}

// Extract returns the value following the segment what in key
func Extract(key, what string) (string, bool) {
	parts := strings.Split(key, sep)
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == what {
			return parts[i+1], true
		}
	}
	return "", false
}

func contains(key string, f Field) bool {
	return strings.Contains(sep+key, sep+f.Name+sep+f.Value+sep)
}

// RedisJSON is a JSON document store on top of a Redis client
type RedisJSON struct {
	client *redis.Client
	prefix string
	// keys fetched per SCAN round trip
	scanCount int64
}

// New connects to the Redis described by cfg
func New(cfg config.RedisConfig) *RedisJSON {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.Prefix)
}

// NewWithClient wraps an existing client. Every key is stored under prefix.
func NewWithClient(client *redis.Client, prefix string) *RedisJSON {
	return &RedisJSON{client: client, prefix: prefix, scanCount: 100}
}

func (r *RedisJSON) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *RedisJSON) Close() error {
	return r.client.Close()
}

// SetJSON stores value as JSON; ttl 0 means no expiry
func (r *RedisJSON) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return r.client.Set(ctx, r.prefix+key, data, ttl).Err()
}

// GetJSON decodes the document at key into dest. It reports false when the key does not exist.
func (r *RedisJSON) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisJSON) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	return r.client.Del(ctx, full...).Err()
}

// Clear deletes every key under the store's prefix
func (r *RedisJSON) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", r.scanCount).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	logrus.Debugf("Cleared %d redis keys under %q", deleted, r.prefix)
	return nil
}

// FindKeys returns the keys containing every given field
func (r *RedisJSON) FindKeys(ctx context.Context, fields ...Field) ([]string, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to match")
	}

	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+Pattern(fields[0]), r.scanCount).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), r.prefix)
		match := true
		for _, f := range fields[1:] {
			if !contains(key, f) {
				match = false
				break
			}
		}
		if match {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// FindKey returns the first key containing every given field
func (r *RedisJSON) FindKey(ctx context.Context, fields ...Field) (string, bool, error) {
	keys, err := r.FindKeys(ctx, fields...)
	if err != nil || len(keys) == 0 {
		return "", false, err
	}
	return keys[0], true, nil
}

// FindOne decodes the first document whose key contains every given field
func (r *RedisJSON) FindOne(ctx context.Context, dest any, fields ...Field) (bool, error) {
	key, ok, err := r.FindKey(ctx, fields...)
	if err != nil || !ok {
		return false, err
	}
	return r.GetJSON(ctx, key, dest)
}

// FindAll returns the raw documents whose keys contain every given field
func (r *RedisJSON) FindAll(ctx context.Context, fields ...Field) (map[string]json.RawMessage, error) {
	keys, err := r.FindKeys(ctx, fields...)
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		data, err := r.client.Get(ctx, r.prefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, err
		}
		out[key] = data
	}
	return out, nil
}
