// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package kvcache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis is a Cache backed by a redis server. All redis errors are logged at
// debug level and swallowed; an unreachable server turns every read into a
// miss and every write into a no-op.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the redis server described by the URL
// (redis://[user[:password]@]host:port[/db]) and verifies the connection
// with a ping.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client}, nil
}

func (cache *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := cache.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().Err(err).Str("Key", key).Msg("cache get failed; treating as miss")
		}
		return nil, false
	}

	return value, true
}

func (cache *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := cache.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("Key", key).Msg("cache set failed; entry dropped")
	}
}

func (cache *Redis) Delete(ctx context.Context, key string) {
	if err := cache.client.Del(ctx, key).Err(); err != nil {
		log.Debug().Err(err).Str("Key", key).Msg("cache delete failed")
	}
}

// InvalidateMatching scans for keys with the given prefix and deletes them.
// SCAN is used instead of KEYS so large caches are not blocked.
func (cache *Redis) InvalidateMatching(ctx context.Context, prefix string) {
	iter := cache.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	keys := make([]string, 0, 100)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		log.Debug().Err(err).Str("Prefix", prefix).Msg("cache scan failed during invalidation")
		return
	}

	if len(keys) == 0 {
		return
	}

	if err := cache.client.Del(ctx, keys...).Err(); err != nil {
		log.Debug().Err(err).Str("Prefix", prefix).Int("NumKeys", len(keys)).Msg("cache invalidation failed")
	}
}

func (cache *Redis) Close() {
	if err := cache.client.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing redis client")
	}
}
