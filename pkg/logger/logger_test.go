package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// 日志包常被库代码在 InitLogger 之前调用（测试进程、启动早期），
// 未初始化时必须安静降级而不是崩溃
func TestHelpersSafeBeforeInit(t *testing.T) {
	saved := Logger
	Logger = nil
	t.Cleanup(func() { Logger = saved })

	assert.NotPanics(t, func() {
		LogIf(errors.New("boom"))
		LogWarnIf(errors.New("boom"))
		LogIf(nil)
		LogWarnIf(nil)
		InfoString("Test", "Name", "msg")
		WarnString("Test", "Name", "msg")
		ErrorString("Test", "Name", "msg")
		Dump(map[string]string{"k": "v"})
	})
}

func TestGormLoggerSafeBeforeInit(t *testing.T) {
	saved := Logger
	Logger = nil
	t.Cleanup(func() { Logger = saved })

	assert.NotPanics(t, func() {
		_ = NewGormLogger()
	})
}
