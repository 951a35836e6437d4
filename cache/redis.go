package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

type RedisConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	Password           string        `yaml:"password"`
	DB                 int           `yaml:"db"`
	PoolSize           int           `yaml:"pool_size"`
	MinIdleConnections int           `yaml:"min_idle_connections"`
	DialTimeout        time.Duration `yaml:"dial_timeout"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	OperationTimeout   time.Duration `yaml:"operation_timeout"`
	KeyPrefix          string        `yaml:"key_prefix"`
}

// setAndEvict writes the value and its index entry, then trims the index to
// max members by removing the lowest scores, never the member just written.
// The score is the write millisecond followed by three digits of a per-store
// sequence, so writes inside one millisecond still evict in write order. It
// is built as a string because Lua formats large numbers with %.14g.
//
// KEYS[1] value key, KEYS[2] index key, KEYS[3] sequence key
// ARGV[1] payload, ARGV[2] ttl ms, ARGV[3] write time ms, ARGV[4] member,
// ARGV[5] max items, ARGV[6] value key prefix
var setAndEvict = redis.NewScript(`
local seq = redis.call('INCR', KEYS[3]) % 1000
redis.call('PEXPIRE', KEYS[3], ARGV[2])
local score = ARGV[3] .. string.format('%03d', seq)
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('ZADD', KEYS[2], score, ARGV[4])
redis.call('PEXPIRE', KEYS[2], ARGV[2])
local excess = redis.call('ZCARD', KEYS[2]) - tonumber(ARGV[5])
local evicted = 0
if excess > 0 then
  local victims = redis.call('ZRANGE', KEYS[2], 0, excess)
  for _, member in ipairs(victims) do
    if evicted < excess and member ~= ARGV[4] then
      redis.call('DEL', ARGV[6] .. member)
      redis.call('ZREM', KEYS[2], member)
      evicted = evicted + 1
    end
  end
end
return evicted
`)

// scoreSeqSpan is the number of sequence slots per millisecond in an index
// score. Millisecond times scaled by it stay below 2^53, so Redis keeps the
// scores exact.
const scoreSeqSpan = 1000

// indexScore is the score a write at t with sequence seq receives.
func indexScore(t time.Time, seq int64) int64 {
	return t.UnixMilli()*scoreSeqSpan + seq%scoreSeqSpan
}

// RedisCache keeps the bounded TTL contract in a shared Redis so several
// API processes see one cache. Values expire natively; a sorted set scored
// by write time and sequence tracks recency for the capacity bound.
type RedisCache struct {
	name     string
	ttl      time.Duration
	maxItems int
	config   *RedisConfig
	client   redis.UniversalClient
	logger   types.Logger
	now      func() time.Time
	state    atomic.Value
}

func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:               "localhost",
		Port:               6379,
		PoolSize:           10,
		MinIdleConnections: 2,
		DialTimeout:        5 * time.Second,
		ReadTimeout:        3 * time.Second,
		WriteTimeout:       3 * time.Second,
		OperationTimeout:   2 * time.Second,
		KeyPrefix:          "fraud-api",
	}
}

func NewRedisCache(name string, config *types.CacheConfig, logger types.Logger) (*RedisCache, error) {
	redisConfig := DefaultRedisConfig()

	if config.Config != nil {
		if err := decodeSubConfig(config.Config, redisConfig); err != nil {
			return nil, types.WrapError(err, "failed to decode redis cache config")
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port),
		Password:     redisConfig.Password,
		DB:           redisConfig.DB,
		PoolSize:     redisConfig.PoolSize,
		MinIdleConns: redisConfig.MinIdleConnections,
		DialTimeout:  redisConfig.DialTimeout,
		ReadTimeout:  redisConfig.ReadTimeout,
		WriteTimeout: redisConfig.WriteTimeout,
	})

	return NewRedisCacheWithClient(name, config.TTL, config.MaxItems, redisConfig, client, logger), nil
}

func NewRedisCacheWithClient(name string, ttl time.Duration, maxItems int, config *RedisConfig, client redis.UniversalClient, logger types.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if config == nil {
		config = DefaultRedisConfig()
	}
	if config.OperationTimeout <= 0 {
		config.OperationTimeout = 2 * time.Second
	}

	r := &RedisCache{
		name:     name,
		ttl:      ttl,
		maxItems: maxItems,
		config:   config,
		client:   client,
		logger:   logger,
		now:      time.Now,
	}
	r.state.Store(StateStopped)

	return r
}

func newRedisFromConfig(name string, config *types.CacheConfig, logger types.Logger) (types.CacheManager, error) {
	return NewRedisCache(name, config, logger)
}

func (r *RedisCache) Name() string {
	return r.name
}

func (r *RedisCache) Start() error {
	if !r.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServerAlreadyRunning
	}

	ctx, cancel := r.opContext()
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.state.Store(StateStopped)
		return types.Errorf(types.ErrCacheConnectionFailed, "%v", err)
	}

	r.logger.Info("Redis cache started", zap.String("cache", r.name))
	return nil
}

func (r *RedisCache) Stop() error {
	if !r.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrServerNotRunning
	}

	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis client", zap.String("cache", r.name), zap.Error(err))
		return types.WrapError(err, "failed to close redis client")
	}

	r.logger.Info("Redis cache closed", zap.String("cache", r.name))
	return nil
}

func (r *RedisCache) IsRunning() bool {
	return r.state.Load().(State) == StateRunning
}

// Get decodes hits into generic JSON values; callers convert them with
// utils.UnmarshalConfig. Backend errors are logged and reported as misses.
func (r *RedisCache) Get(key string) (interface{}, bool) {
	if key == "" {
		return nil, false
	}

	ctx, cancel := r.opContext()
	defer cancel()

	data, err := r.client.Get(ctx, r.valueKey(key)).Bytes()
	if err != nil {
		if types.IsError(err, redis.Nil) {
			if zErr := r.client.ZRem(ctx, r.indexKey(), key).Err(); zErr != nil {
				r.logger.Debug("Failed to drop expired index member", zap.String("cache", r.name), zap.Error(zErr))
			}
			return nil, false
		}
		r.logger.Error("Failed to get cache entry", zap.String("cache", r.name), zap.Error(err))
		return nil, false
	}

	var value interface{}
	if err := utils.Unmarshal(data, &value); err != nil {
		r.logger.Error("Failed to decode cache entry", zap.String("cache", r.name), zap.Error(err))
		r.client.Del(ctx, r.valueKey(key))
		return nil, false
	}

	return value, true
}

func (r *RedisCache) Set(key string, value interface{}) {
	if key == "" {
		return
	}

	data, err := utils.Marshal(value)
	if err != nil {
		r.logger.Error("Failed to encode cache entry", zap.String("cache", r.name), zap.Error(err))
		return
	}

	ctx, cancel := r.opContext()
	defer cancel()

	evicted, err := setAndEvict.Run(ctx, r.client,
		[]string{r.valueKey(key), r.indexKey(), r.seqKey()},
		data,
		r.ttl.Milliseconds(),
		strconv.FormatInt(r.now().UnixMilli(), 10),
		key,
		r.maxItems,
		r.valuePrefix(),
	).Int()
	if err != nil {
		r.logger.Error("Failed to set cache entry", zap.String("cache", r.name), zap.Error(err))
		return
	}

	if evicted > 0 {
		r.logger.Debug("Cache evicted oldest entries", zap.String("cache", r.name), zap.Int("evicted", evicted))
	}
}

func (r *RedisCache) Len() int {
	ctx, cancel := r.opContext()
	defer cancel()

	r.dropStaleIndex(ctx)

	n, err := r.client.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		r.logger.Error("Failed to count cache entries", zap.String("cache", r.name), zap.Error(err))
		return 0
	}

	return int(n)
}

// Sweep removes index members older than the TTL together with any value
// Redis has not expired yet.
func (r *RedisCache) Sweep() int {
	ctx, cancel := r.opContext()
	defer cancel()

	stale, err := r.client.ZRangeByScore(ctx, r.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: r.expiredBefore(),
	}).Result()
	if err != nil {
		r.logger.Error("Failed to list expired cache entries", zap.String("cache", r.name), zap.Error(err))
		return 0
	}

	if len(stale) == 0 {
		return 0
	}

	valueKeys := make([]string, len(stale))
	members := make([]interface{}, len(stale))
	for i, member := range stale {
		valueKeys[i] = r.valueKey(member)
		members[i] = member
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, valueKeys...)
	pipe.ZRem(ctx, r.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to sweep cache entries", zap.String("cache", r.name), zap.Error(err))
		return 0
	}

	return len(stale)
}

func (r *RedisCache) Stats() types.CacheStats {
	return types.CacheStats{
		Name:     r.name,
		Backend:  "redis",
		Items:    r.Len(),
		MaxItems: r.maxItems,
		TTL:      r.ttl,
	}
}

func (r *RedisCache) dropStaleIndex(ctx context.Context) {
	if err := r.client.ZRemRangeByScore(ctx, r.indexKey(), "-inf", r.expiredBefore()).Err(); err != nil {
		r.logger.Debug("Failed to trim cache index", zap.String("cache", r.name), zap.Error(err))
	}
}

// expiredBefore is the exclusive upper score bound of entries written
// more than one TTL ago.
func (r *RedisCache) expiredBefore() string {
	return "(" + strconv.FormatInt(indexScore(r.now().Add(-r.ttl), 0), 10)
}

func (r *RedisCache) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.config.OperationTimeout)
}

func (r *RedisCache) valuePrefix() string {
	return fmt.Sprintf("%s:%s:v:", r.config.KeyPrefix, r.name)
}

func (r *RedisCache) valueKey(key string) string {
	return r.valuePrefix() + key
}

func (r *RedisCache) indexKey() string {
	return fmt.Sprintf("%s:%s:index", r.config.KeyPrefix, r.name)
}

func (r *RedisCache) seqKey() string {
	return fmt.Sprintf("%s:%s:seq", r.config.KeyPrefix, r.name)
}

// decodeSubConfig maps a loosely typed YAML sub-tree onto target, keeping
// duration strings such as "3s" intact.
func decodeSubConfig(raw interface{}, target interface{}) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, target)
}
