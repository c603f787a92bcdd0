// Package payment VNPay 支付控制器
package payment

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	paymentmodel "zufang/app/models/payment"
	"zufang/app/repositories"
	"zufang/app/requests"
	"zufang/pkg/confirm"
	"zufang/pkg/config"
	"zufang/pkg/logger"
	"zufang/pkg/response"
	"zufang/pkg/services"
	"zufang/pkg/vnpay"
)

// 网关 IPN 应答码
const (
	ackConfirmSuccess   = "00"
	ackOrderNotFound    = "01"
	ackAlreadyConfirmed = "02"
	ackInvalidAmount    = "04"
	ackInvalidSignature = "97"
)

// VNPayController VNPay 支付流程控制器
type VNPayController struct {
	payments    *repositories.PaymentRepository
	rooms       *repositories.RoomRepository
	roomInfo    *services.RoomInfoClient
	bookings    *services.BookingClient
	bills       *services.BillClient
	contracts   *services.ContractClient
	coordinator *confirm.Coordinator
	effects     confirm.Effects
	cfg         vnpay.Config
}

// NewVNPayController 创建支付控制器
func NewVNPayController(coordinator *confirm.Coordinator, effects confirm.Effects) *VNPayController {
	return &VNPayController{
		payments:    repositories.NewPaymentRepository(),
		rooms:       repositories.NewRoomRepository(),
		roomInfo:    services.NewRoomInfoClient(),
		bookings:    services.NewBookingClient(),
		bills:       services.NewBillClient(),
		contracts:   services.NewContractClient(),
		coordinator: coordinator,
		effects:     effects,
		cfg:         vnpay.ConfigFromEnv(),
	}
}

// StoreRoomDeposit 发起占房押金支付
//
// 生成支付链接之前先占住房间（先到先得），占房失败立即回删
// 刚创建的 pending 支付，不把名额挂在一笔未付的单子上
func (ct *VNPayController) StoreRoomDeposit(c *gin.Context) {
	request, err := requests.ValidateRoomDeposit(c)
	if err != nil {
		response.BadRequest(c, err, "请求参数验证失败")
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString("user_id")

	info, err := ct.roomInfo.Get(ctx, request.RoomID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			response.Abort404(c, "房间不存在")
			return
		}
		response.Abort500(c, "房源服务暂不可用")
		return
	}
	if info.Status != "available" {
		response.Abort400(c, "房间已不可预订")
		return
	}
	if info.DepositMinor <= 0 {
		response.Abort400(c, "该房间未配置押金")
		return
	}

	// 已有生效合同的租客不允许再交占房押金
	if ct.contracts.HasActiveContract(ctx, userID) {
		response.Abort400(c, "您已有生效中的租房合同，无法再预订新房间")
		return
	}

	p := &paymentmodel.Payment{
		Kind:        paymentmodel.KindRoomDeposit,
		SubjectID:   request.RoomID,
		UserID:      userID,
		AmountMinor: info.DepositMinor,
		CheckInDate: request.CheckInDate,
	}
	if err := ct.payments.Create(ctx, p); err != nil {
		response.ServerError(c, err, "创建支付单失败")
		return
	}

	if err := ct.rooms.Hold(ctx, request.RoomID, userID, p.ID); err != nil {
		// 占房失败不留悬空的 pending 支付
		if delErr := ct.payments.Delete(ctx, p.ID); delErr != nil {
			logger.LogWarnIf(delErr)
		}
		if errors.Is(err, repositories.ErrRoomNotAvailable) {
			response.Abort400(c, "手慢了，房间刚被别人占住")
			return
		}
		response.ServerError(c, err, "占房失败")
		return
	}

	payURL := vnpay.BuildPaymentURL(ct.cfg, vnpay.PaymentURLRequest{
		TxnRef:      p.ID,
		AmountMinor: p.AmountMinor,
		OrderInfo:   paymentmodel.OrderInfo(p.Kind, p.SubjectID),
		ClientIP:    c.ClientIP(),
	})

	response.Data(c, gin.H{
		"payment_url": payURL,
		"payment_id":  p.ID,
		"room_id":     request.RoomID,
	})
}

// StoreBookingDeposit 发起预订订金支付
func (ct *VNPayController) StoreBookingDeposit(c *gin.Context) {
	request, err := requests.ValidateBookingDeposit(c)
	if err != nil {
		response.BadRequest(c, err, "请求参数验证失败")
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString("user_id")

	booking, err := ct.bookings.Get(ctx, request.BookingID, c.GetString("bearer_token"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			response.Abort404(c, "预订不存在或无权访问")
			return
		}
		response.Abort500(c, "预订服务暂不可用")
		return
	}

	if booking.DepositAmountMinor <= 0 {
		response.Abort400(c, "该预订没有需要支付的订金")
		return
	}
	if booking.DepositStatus == "paid" {
		response.Abort400(c, "该预订的订金已支付")
		return
	}

	p := &paymentmodel.Payment{
		Kind:        paymentmodel.KindBookingDeposit,
		SubjectID:   request.BookingID,
		UserID:      firstNonEmpty(booking.UserID, userID),
		AmountMinor: booking.DepositAmountMinor,
	}
	if err := ct.payments.Create(ctx, p); err != nil {
		response.ServerError(c, err, "创建支付单失败")
		return
	}

	payURL := vnpay.BuildPaymentURL(ct.cfg, vnpay.PaymentURLRequest{
		TxnRef:      p.ID,
		AmountMinor: p.AmountMinor,
		OrderInfo:   paymentmodel.OrderInfo(p.Kind, p.SubjectID),
		ClientIP:    c.ClientIP(),
	})

	response.Data(c, gin.H{
		"payment_url": payURL,
		"payment_id":  p.ID,
		"booking_id":  request.BookingID,
	})
}

// StoreBillPayment 发起账单支付（按剩余应付金额，支持分次支付）
func (ct *VNPayController) StoreBillPayment(c *gin.Context) {
	request, err := requests.ValidateBillPayment(c)
	if err != nil {
		response.BadRequest(c, err, "请求参数验证失败")
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString("user_id")

	bill, err := ct.bills.Get(ctx, request.BillID, c.GetString("bearer_token"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			response.Abort404(c, "账单不存在或无权访问")
			return
		}
		response.Abort500(c, "账单服务暂不可用")
		return
	}

	// 只有账单归属人或管理员可以支付
	if c.GetString("user_role") != "admin" && bill.UserID != userID {
		response.Abort403(c, "无权支付该账单")
		return
	}
	if bill.Status == "paid" {
		response.Abort400(c, "账单已支付")
		return
	}

	collected, err := ct.payments.TotalCollected(ctx, paymentmodel.KindBillPayment, request.BillID)
	if err != nil {
		response.ServerError(c, err, "计算已付金额失败")
		return
	}
	remaining := bill.TotalAmountMinor - collected
	if remaining <= 0 {
		response.Abort400(c, "账单已付清")
		return
	}

	p := &paymentmodel.Payment{
		Kind:        paymentmodel.KindBillPayment,
		SubjectID:   request.BillID,
		UserID:      userID,
		AmountMinor: remaining,
	}
	if err := ct.payments.Create(ctx, p); err != nil {
		response.ServerError(c, err, "创建支付单失败")
		return
	}

	payURL := vnpay.BuildPaymentURL(ct.cfg, vnpay.PaymentURLRequest{
		TxnRef:      p.ID,
		AmountMinor: p.AmountMinor,
		OrderInfo:   paymentmodel.OrderInfo(p.Kind, p.SubjectID),
		ClientIP:    c.ClientIP(),
	})

	response.Data(c, gin.H{
		"payment_url": payURL,
		"payment_id":  p.ID,
		"bill_id":     request.BillID,
	})
}

// IPN 网关服务端回调
// 无论结果如何都按网关协议返回应答码，网关据此决定是否重发
func (ct *VNPayController) IPN(c *gin.Context) {
	params := queryToMap(c)

	result, err := ct.coordinator.Resolve(c.Request.Context(), confirm.Event{
		Channel:  confirm.ChannelIPN,
		Params:   params,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			ack(c, ackOrderNotFound, "Order not found")
			return
		}
		logger.ErrorString("VNPay", "IPN", err.Error())
		ack(c, "99", "Unknown error")
		return
	}

	switch {
	case !result.SignatureOK:
		ack(c, ackInvalidSignature, "Invalid Signature")
	case result.AlreadyTerminal && result.Outcome == confirm.OutcomeCompleted:
		ack(c, ackAlreadyConfirmed, "Order already confirmed")
	case result.AmountMismatch:
		ack(c, ackInvalidAmount, "Invalid amount")
	default:
		// 完成、失败、重复失败上报都让网关停止重发
		ack(c, ackConfirmSuccess, "Confirm Success")
	}
}

// Return 浏览器回跳，处理后把用户重定向回前端页面
func (ct *VNPayController) Return(c *gin.Context) {
	params := queryToMap(c)
	event := confirm.Event{
		Channel:  confirm.ChannelRedirect,
		Params:   params,
		ClientIP: c.ClientIP(),
	}

	result, err := ct.coordinator.Resolve(c.Request.Context(), event)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			ct.redirectFrontend(c, nil, "error", ackOrderNotFound, event.TxnRef())
			return
		}
		logger.ErrorString("VNPay", "Return", err.Error())
		ct.redirectFrontend(c, nil, "error", "99", event.TxnRef())
		return
	}

	p := result.Payment
	switch {
	case !result.SignatureOK:
		ct.redirectFrontend(c, p, "error", ackInvalidSignature, p.ID)
	case result.Outcome == confirm.OutcomeCompleted:
		ct.redirectFrontend(c, p, "success", "", p.ID)
	case result.Outcome == confirm.OutcomeFailed && event.ResponseCode() == vnpay.CodeUserCancelled:
		ct.redirectFrontend(c, p, "cancel", "", p.ID)
	case result.Outcome == confirm.OutcomeFailed:
		ct.redirectFrontend(c, p, "failed", firstNonEmpty(event.ResponseCode(), "failed"), p.ID)
	default:
		ct.redirectFrontend(c, p, "pending", "", p.ID)
	}
}

// Verify 认证轮询：查询支付状态，pending 时尝试按策略再判定
func (ct *VNPayController) Verify(c *gin.Context) {
	ctx := c.Request.Context()
	paymentID := c.Param("payment_id")

	p, err := ct.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			response.Abort404(c, "支付单不存在")
			return
		}
		response.ServerError(c, err)
		return
	}

	// 仅本人或管理员可查
	if c.GetString("user_role") != "admin" && p.UserID != c.GetString("user_id") {
		response.Abort403(c, "无权查询该支付")
		return
	}

	if p.IsTerminal() {
		// 终态重放副作用，兜底补齐早前投递失败的下游动作
		ct.replayEffects(c, p)
		response.Data(c, verifyPayload(p, p.Status == paymentmodel.StatusCompleted))
		return
	}

	result, err := ct.coordinator.ResolvePending(ctx, p, c.ClientIP())
	if err != nil {
		response.ServerError(c, err, "支付状态确认失败")
		return
	}

	response.Data(c, verifyPayload(result.Payment, result.Outcome == confirm.OutcomeCompleted))
}

// replayEffects 重新投递终态副作用（副作用自身幂等）
func (ct *VNPayController) replayEffects(c *gin.Context, p *paymentmodel.Payment) {
	if ct.effects == nil {
		return
	}
	switch p.Status {
	case paymentmodel.StatusCompleted:
		ct.effects.PaymentCompleted(c.Request.Context(), p)
	case paymentmodel.StatusFailed:
		ct.effects.PaymentFailed(c.Request.Context(), p)
	}
}

// redirectFrontend 带结果参数重定向回前端
func (ct *VNPayController) redirectFrontend(c *gin.Context, p *paymentmodel.Payment, status, code, paymentID string) {
	base := config.GetString("vnpay.frontend_home_url")
	values := url.Values{}
	values.Set("vnpay", status)
	if code != "" {
		values.Set("code", code)
	}
	if paymentID != "" {
		values.Set("payment_id", paymentID)
	}

	if p != nil {
		switch p.Kind {
		case paymentmodel.KindBillPayment:
			base = config.GetString("vnpay.frontend_bill_url")
			values.Set("bill_id", p.SubjectID)
		case paymentmodel.KindBookingDeposit:
			values.Set("booking_id", p.SubjectID)
		case paymentmodel.KindRoomDeposit:
			values.Set("room_id", p.SubjectID)
		}
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("%s?%s", base, values.Encode()))
}

func verifyPayload(p *paymentmodel.Payment, verified bool) gin.H {
	return gin.H{
		"payment_id":    p.ID,
		"kind":          p.Kind,
		"subject_id":    p.SubjectID,
		"status":        p.Status,
		"verified":      verified,
		"provider_code": p.ProviderCode,
	}
}

func ack(c *gin.Context, code, message string) {
	c.JSON(http.StatusOK, gin.H{"RspCode": code, "Message": message})
}

func queryToMap(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
