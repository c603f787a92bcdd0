package effects

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"zufang/pkg/config"
	"zufang/pkg/redis"
)

// Queue Redis 副作用队列
type Queue struct {
	client      *redis.RedisClient
	prefix      string
	statusTTL   time.Duration
	rateLimiter *rate.Limiter
	metrics     *Metrics
}

// NewQueue 创建队列实例，参数取配置
func NewQueue() *Queue {
	rateLimit := config.GetInt("effects.rate_limit")
	if rateLimit <= 0 {
		rateLimit = 500
	}

	ttl := time.Duration(config.GetInt("effects.status_ttl_seconds")) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}

	prefix := config.GetString("effects.queue_prefix")
	if prefix == "" {
		prefix = "zufang"
	}

	return &Queue{
		client:      redis.GetRedis(redis.QueueDB),
		prefix:      prefix,
		statusTTL:   ttl,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		metrics:     NewMetrics(),
	}
}

func (q *Queue) listKey() string {
	return fmt.Sprintf("%s:effects", q.prefix)
}

func (q *Queue) statusKey(id string) string {
	return fmt.Sprintf("%s:effects:status:%s", q.prefix, id)
}

// Push 投递任务
func (q *Queue) Push(ctx context.Context, effect *Effect) error {
	if err := q.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("effects rate limit: %w", err)
	}

	start := time.Now()
	defer q.metrics.RecordPushLatency(time.Since(start))

	raw, err := json.Marshal(effect)
	if err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("marshal effect %s: %w", effect.ID, err)
	}

	pipe := q.client.Client.Pipeline()
	pipe.LPush(ctx, q.listKey(), raw)
	pipe.Set(ctx, q.statusKey(effect.ID), string(StatusPending), q.statusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("push effect %s: %w", effect.ID, err)
	}

	q.metrics.RecordSuccess(OpPush)
	return nil
}

// Pop 阻塞取出一个任务，超时返回 (nil, nil)
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Effect, error) {
	result, err := q.client.Client.BRPop(ctx, timeout, q.listKey()).Result()
	if err != nil {
		if err == goredis.Nil || err == context.DeadlineExceeded || err == context.Canceled {
			return nil, nil
		}
		return nil, fmt.Errorf("pop effect: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("pop effect: unexpected brpop result")
	}

	var effect Effect
	if err := json.Unmarshal([]byte(result[1]), &effect); err != nil {
		return nil, fmt.Errorf("unmarshal effect: %w", err)
	}
	return &effect, nil
}

// SetStatus 更新任务状态
func (q *Queue) SetStatus(ctx context.Context, id string, status Status) error {
	return q.client.Client.Set(ctx, q.statusKey(id), string(status), q.statusTTL).Err()
}

// GetStatus 查询任务状态，任务不存在返回空串
func (q *Queue) GetStatus(ctx context.Context, id string) (Status, error) {
	status, err := q.client.Client.Get(ctx, q.statusKey(id)).Result()
	if err != nil {
		if err == goredis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("get effect status: %w", err)
	}
	return Status(status), nil
}

// Length 当前队列长度
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.Client.LLen(ctx, q.listKey()).Result()
}

// Metrics 指标收集器
func (q *Queue) Metrics() *Metrics {
	return q.metrics
}

// Ping 队列健康检查
func (q *Queue) Ping() error {
	return q.client.Ping()
}
