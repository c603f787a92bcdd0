package effects

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zufang/pkg/config"
	"zufang/pkg/logger"
)

// WorkerConfig 工作器组配置
type WorkerConfig struct {
	WorkerCount     int
	MaxRetries      int
	RetryInterval   time.Duration
	ShutdownTimeout time.Duration
}

// WorkerConfigFromEnv 从配置读取工作器参数
func WorkerConfigFromEnv() WorkerConfig {
	return WorkerConfig{
		WorkerCount:     config.GetInt("effects.worker_count"),
		MaxRetries:      config.GetInt("effects.max_retries"),
		RetryInterval:   time.Duration(config.GetInt("effects.retry_interval_seconds")) * time.Second,
		ShutdownTimeout: time.Duration(config.GetInt("effects.shutdown_timeout_seconds")) * time.Second,
	}
}

// Worker 副作用工作器组
type Worker struct {
	queue    *Queue
	executor *Executor
	config   WorkerConfig
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker 创建工作器组
func NewWorker(queue *Queue, executor *Executor, cfg WorkerConfig) *Worker {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	return &Worker{
		queue:    queue,
		executor: executor,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// Start 启动工作器组
func (w *Worker) Start() {
	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.run(i)
	}
}

func (w *Worker) run(id int) {
	defer w.wg.Done()

	logger.InfoString("Effects", "Worker", fmt.Sprintf("worker %d 启动", id))

	for {
		select {
		case <-w.stopChan:
			logger.InfoString("Effects", "Worker", fmt.Sprintf("worker %d 退出", id))
			return
		default:
			if err := w.processNext(); err != nil {
				logger.ErrorString("Effects", "Worker", fmt.Sprintf("worker %d: %v", id, err))
				time.Sleep(time.Second)
			}
		}
	}
}

// processNext 取出并处理下一个任务
func (w *Worker) processNext() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	effect, err := w.queue.Pop(ctx, 5*time.Second)
	if err != nil {
		return err
	}
	if effect == nil {
		return nil
	}

	return w.handle(effect)
}

// handle 执行任务，失败后延迟重投直到超出次数上限
func (w *Worker) handle(effect *Effect) error {
	start := time.Now()
	metrics := w.queue.Metrics()
	defer func() {
		metrics.RecordProcessLatency(time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := w.queue.SetStatus(ctx, effect.ID, StatusRunning); err != nil {
		logger.LogWarnIf(err)
	}

	err := w.executor.Execute(ctx, effect)
	if err == nil {
		metrics.RecordSuccess(OpProcess)
		return w.queue.SetStatus(ctx, effect.ID, StatusCompleted)
	}

	metrics.RecordError(OpProcess)
	effect.Attempts++

	if effect.Attempts >= w.config.MaxRetries {
		logger.ErrorString("Effects", "Exhausted", fmt.Sprintf(
			"任务:%s 类型:%s 支付:%s 尝试:%d 错误:%v",
			effect.ID, effect.Kind, effect.PaymentID, effect.Attempts, err))
		return w.queue.SetStatus(ctx, effect.ID, StatusFailed)
	}

	logger.WarnString("Effects", "Retry", fmt.Sprintf(
		"任务:%s 类型:%s 尝试:%d 错误:%v",
		effect.ID, effect.Kind, effect.Attempts, err))
	metrics.RecordRetry()

	// 延迟重投，不占住工作器
	retry := *effect
	time.AfterFunc(w.config.RetryInterval, func() {
		pushCtx, pushCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pushCancel()
		if pushErr := w.queue.Push(pushCtx, &retry); pushErr != nil {
			logger.ErrorString("Effects", "Requeue", pushErr.Error())
		}
	})
	return nil
}

// Stop 优雅关闭工作器组
func (w *Worker) Stop() {
	close(w.stopChan)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoString("Effects", "Worker", "全部工作器已退出")
	case <-time.After(w.config.ShutdownTimeout):
		logger.WarnString("Effects", "Worker", "工作器退出超时")
	}
}
