package kv

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// The go-redis default is 10 * GOMAXPROCS which is misleading in
	// containers. Each cluster node gets its own pool of this size.
	nodePoolSize = 10
	scanCount    = 100
	pingTimeout  = 30 * time.Second
)

type Logger interface {
	Debugf(string, ...any)
	Infof(string, ...any)
}

// RedisConfig selects a single node (Addr) or a cluster (ClusterAddrs).
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	ClusterAddrs []string
	TLS          bool
}

func (cfg RedisConfig) IsCluster() bool {
	return len(cfg.ClusterAddrs) > 0
}

func (cfg RedisConfig) URL() string {
	if cfg.IsCluster() {
		return cfg.ClusterAddrs[0]
	}
	return cfg.Addr
}

// Redis implements Store on go-redis. The client is long lived and pools its
// own connections; every adapter in the process shares it.
type Redis struct {
	client redis.UniversalClient
	log    Logger
	name   string
}

// NewRedis connects to redis and pings it before returning.
func NewRedis(ctx context.Context, cfg RedisConfig, log Logger) (*Redis, error) {
	var tlsConfig *tls.Config
	if cfg.TLS {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	var client redis.UniversalClient
	if cfg.IsCluster() {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.ClusterAddrs,
			Password:     cfg.Password,
			PoolSize:     nodePoolSize,
			MaxRedirects: len(cfg.ClusterAddrs),
			TLSConfig:    tlsConfig,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:      cfg.Addr,
			Password:  cfg.Password,
			DB:        cfg.DB,
			TLSConfig: tlsConfig,
		})
	}

	r := NewRedisFromClient(client, log)
	r.name = cfg.URL()
	log.Infof("connecting to redis: %s (cluster %v)", r.name, cfg.IsCluster())

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, ConnectError(err, r.name)
	}
	return r, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client redis.UniversalClient, log Logger) *Redis {
	return &Redis{client: client, log: log, name: "redis"}
}

func (r *Redis) Increment(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, CommandError(err, "INCR", key)
	}
	return n, nil
}

func (r *Redis) GetFields(ctx context.Context, key string) (map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, CommandError(err, "HGETALL", key)
	}
	return fields, nil
}

func (r *Redis) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, 2*len(fields))
	for field, value := range fields {
		args = append(args, field, value)
	}
	if err := r.client.HSet(ctx, key, args...).Err(); err != nil {
		return CommandError(err, "HSET", key)
	}
	return nil
}

func (r *Redis) SetField(ctx context.Context, key, field, value string) error {
	if err := r.client.HSet(ctx, key, field, value).Err(); err != nil {
		return CommandError(err, "HSET", key)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	// DEL removes the whole key (HDEL would remove a field)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return CommandError(err, "DEL", key)
	}
	return nil
}

func (r *Redis) AddMember(ctx context.Context, key, member string) error {
	if err := r.client.SAdd(ctx, key, member).Err(); err != nil {
		return CommandError(err, "SADD", key)
	}
	return nil
}

func (r *Redis) RemoveMember(ctx context.Context, key, member string) error {
	if err := r.client.SRem(ctx, key, member).Err(); err != nil {
		return CommandError(err, "SREM", key)
	}
	return nil
}

func (r *Redis) Members(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, CommandError(err, "SMEMBERS", key)
	}
	return members, nil
}

func (r *Redis) GetString(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, CommandError(err, "GET", key)
	}
	return value, true, nil
}

// Both scripts touch a single key so they also run on a cluster.
var (
	compareAndSwapScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2])
	return 1
end
return 0
`)
	compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
)

func (r *Redis) CompareAndSwap(ctx context.Context, key, old, next string) (bool, error) {
	n, err := compareAndSwapScript.Run(ctx, r.client, []string{key}, old, next).Int64()
	if err != nil {
		return false, CommandError(err, "CAS", key)
	}
	return n == 1, nil
}

func (r *Redis) CompareAndDelete(ctx context.Context, key, old string) (bool, error) {
	n, err := compareAndDeleteScript.Run(ctx, r.client, []string{key}, old).Int64()
	if err != nil {
		return false, CommandError(err, "CAD", key)
	}
	return n == 1, nil
}

func (r *Redis) SetStringNX(ctx context.Context, key, value string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, CommandError(err, "SETNX", key)
	}
	return ok, nil
}

// Keys walks the keyspace with SCAN rather than KEYS so a large database does
// not block the server. On a cluster every master is scanned.
func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	cluster, ok := r.client.(*redis.ClusterClient)
	if !ok {
		keys, err := scanKeys(ctx, r.client, pattern)
		if err != nil {
			return nil, CommandError(err, "SCAN", pattern)
		}
		return keys, nil
	}

	var mu sync.Mutex
	var keys []string
	err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		found, err := scanKeys(ctx, node, pattern)
		if err != nil {
			return err
		}
		mu.Lock()
		keys = append(keys, found...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, CommandError(err, "SCAN", pattern)
	}
	return keys, nil
}

func scanKeys(ctx context.Context, c redis.Cmdable, pattern string) ([]string, error) {
	// SCAN may return a key more than once
	seen := make(map[string]struct{})
	var keys []string
	iter := c.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, iter.Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.log.Infof("failed ping %s: %v", r.name, err)
		return CommandError(err, "PING", "")
	}
	return nil
}

func (r *Redis) Close() error {
	r.log.Debugf("closing redis %s", r.name)
	if err := r.client.Close(); err != nil {
		return CloseError(err, r.name)
	}
	return nil
}
