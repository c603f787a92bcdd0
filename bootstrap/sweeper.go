package bootstrap

import (
	"context"
	"strconv"
	"time"

	"zufang/app/repositories"
	"zufang/pkg/config"
	"zufang/pkg/logger"
)

// Sweeper 定时释放超时未付款的占房
type Sweeper struct {
	rooms    *repositories.RoomRepository
	interval time.Duration
	timeout  time.Duration
	stopChan chan struct{}
}

// SweeperHandle 当前运行中的清理器，main 中用于优雅关闭
var SweeperHandle *Sweeper

// SetupSweeper 启动占房超时清理器
// sweep_interval_seconds 配置为 0 时不启动，只保留手动清理接口
func SetupSweeper() {
	interval := time.Duration(config.GetInt("reservation.sweep_interval_seconds")) * time.Second
	if interval <= 0 {
		logger.InfoString("Sweeper", "Setup", "定时清理未启用")
		return
	}

	timeout := time.Duration(config.GetInt("reservation.hold_timeout_minutes")) * time.Minute
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}

	SweeperHandle = &Sweeper{
		rooms:    repositories.NewRoomRepository(),
		interval: interval,
		timeout:  timeout,
		stopChan: make(chan struct{}),
	}
	go SweeperHandle.run()

	logger.InfoString("Sweeper", "Setup", "占房超时清理器启动成功")
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	released, err := s.rooms.ReleaseExpired(ctx, s.timeout)
	if err != nil {
		logger.ErrorString("Sweeper", "Sweep", "清理超时占房失败："+err.Error())
		return
	}
	if len(released) > 0 {
		logger.InfoString("Sweeper", "Sweep", "释放超时占房 "+strconv.Itoa(len(released))+" 间")
	}
}

// Stop 停止清理器
func (s *Sweeper) Stop() {
	close(s.stopChan)
}
