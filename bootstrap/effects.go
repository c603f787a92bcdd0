package bootstrap

import (
	"time"

	"zufang/app/repositories"
	"zufang/pkg/config"
	"zufang/pkg/confirm"
	"zufang/pkg/effects"
	"zufang/pkg/logger"
	"zufang/pkg/redis"
	"zufang/pkg/vnpay"
)

// 支付确认与副作用基础设施，main 中用于优雅关闭
var (
	EffectsWorker *effects.Worker
	Dispatcher    *effects.Dispatcher
	Coordinator   *confirm.Coordinator
)

// SetupEffects 初始化副作用队列、工作器和支付确认协调器
func SetupEffects() {
	if redis.Manager == nil {
		logger.ErrorString("Effects", "Setup", "Redis manager not initialized")
		return
	}

	queue := effects.NewQueue()
	if err := queue.Ping(); err != nil {
		logger.ErrorString("Effects", "Setup", "副作用队列 Redis 不可达："+err.Error())
	}

	Dispatcher = effects.NewDispatcher(queue)

	// 后台消费副作用任务
	EffectsWorker = effects.NewWorker(queue, effects.NewExecutor(), effects.WorkerConfigFromEnv())
	go EffectsWorker.Start()

	// 按配置的确认策略构建协调器
	cfg := vnpay.ConfigFromEnv()
	queryTimeout := time.Duration(config.GetInt("vnpay.query_timeout")) * time.Second
	Coordinator = confirm.NewCoordinator(
		confirm.Policy(config.GetString("vnpay.confirm_policy")),
		cfg,
		vnpay.NewClient(cfg, queryTimeout),
		repositories.NewPaymentRepository(),
		Dispatcher,
	)

	logger.InfoString("Effects", "Setup", "副作用队列与支付确认协调器启动成功")
}
