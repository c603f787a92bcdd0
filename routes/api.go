package routes

import (
	"zufang/app/http/controllers/api/v1/payment"
	"zufang/app/http/controllers/api/v1/room"
	"zufang/app/http/middlewares"
	"zufang/pkg/confirm"

	"github.com/gin-gonic/gin"
)

// 路由限流配置
const (
	// 🌍 全局限流：每小时每IP 30000 请求
	GlobalRateLimit = "30000-H"
	// 💰 发起支付限流：每小时每IP 60 请求
	CreatePaymentLimit = "60-H"
	// 🔍 支付状态轮询限流：每分钟每IP 300 请求
	VerifyLimit = "300-M"
	// 📡 网关回调限流：每分钟每IP 600 请求
	CallbackLimit = "600-M"
)

// RegisterAPIRoutes 注册所有 API 路由
func RegisterAPIRoutes(r *gin.Engine, coordinator *confirm.Coordinator, effects confirm.Effects) {
	v1 := r.Group("/v1")

	v1.Use(
		middlewares.Recovery(),
		middlewares.SecurityHeaders(),
		middlewares.LimitIP(GlobalRateLimit),
		middlewares.Cors(),
	)

	// 💳 VNPay 支付相关路由
	vnpayRoutes := v1.Group("/vnpay")
	{
		pc := payment.NewVNPayController(coordinator, effects)

		// 📝 发起占房押金支付
		// POST /v1/vnpay/room-deposit
		vnpayRoutes.POST("/room-deposit",
			middlewares.LimitIP(CreatePaymentLimit),
			middlewares.AuthJWT(),
			pc.StoreRoomDeposit,
		)

		// 📝 发起预订订金支付
		// POST /v1/vnpay/booking-deposit
		vnpayRoutes.POST("/booking-deposit",
			middlewares.LimitIP(CreatePaymentLimit),
			middlewares.AuthJWT(),
			pc.StoreBookingDeposit,
		)

		// 📝 发起账单支付
		// POST /v1/vnpay/bill
		vnpayRoutes.POST("/bill",
			middlewares.LimitIP(CreatePaymentLimit),
			middlewares.AuthJWT(),
			pc.StoreBillPayment,
		)

		// 🔍 支付状态轮询
		// GET /v1/vnpay/verify/:payment_id
		vnpayRoutes.GET("/verify/:payment_id",
			middlewares.LimitIP(VerifyLimit),
			middlewares.AuthJWT(),
			pc.Verify,
		)

		// 🌐 浏览器回跳，网关带结果参数重定向到此
		// GET /v1/vnpay/return
		vnpayRoutes.GET("/return",
			middlewares.LimitIP(CallbackLimit),
			pc.Return,
		)

		// 📡 网关服务端回调（IPN）
		// GET /v1/vnpay/ipn
		vnpayRoutes.GET("/ipn",
			middlewares.LimitIP(CallbackLimit),
			pc.IPN,
		)
	}

	// 🧹 管理端手动清理超时占房
	roomRoutes := v1.Group("/rooms")
	roomRoutes.Use(middlewares.AuthJWT(), middlewares.AuthAdmin())
	{
		rc := room.NewReservationController()
		roomRoutes.POST("/reservations/cleanup", rc.Cleanup)
	}

	// 🔒 服务间内部接口，凭 X-Internal-Api-Key 访问
	internal := r.Group("/internal")
	internal.Use(
		middlewares.Recovery(),
		middlewares.InternalOnly(),
	)
	{
		rc := room.NewReservationController()

		internal.GET("/rooms/:room_id/reservation", rc.Show)
		internal.PUT("/rooms/:room_id/reservation/hold", rc.Hold)
		internal.PUT("/rooms/:room_id/reservation/confirm", rc.Confirm)
		internal.PUT("/rooms/:room_id/reservation/release", rc.Release)
		internal.PUT("/rooms/:room_id/occupy", rc.Occupy)
		internal.PUT("/rooms/:room_id/vacate", rc.Vacate)
		internal.POST("/reservations/cleanup", rc.Cleanup)
	}
}
