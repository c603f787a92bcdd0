// Package room 房间占用状态机控制器（内部服务接口）
package room

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"zufang/app/repositories"
	"zufang/app/requests"
	"zufang/pkg/config"
	"zufang/pkg/logger"
	"zufang/pkg/response"
)

// ReservationController 房间占用状态流转控制器
// 供合同服务、运营后台等内部系统通过服务间接口调用
type ReservationController struct {
	rooms *repositories.RoomRepository
}

// NewReservationController 创建占用状态控制器
func NewReservationController() *ReservationController {
	return &ReservationController{
		rooms: repositories.NewRoomRepository(),
	}
}

// Show 查询房间占用状态
func (ct *ReservationController) Show(c *gin.Context) {
	reservation, err := ct.rooms.Get(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		if errors.Is(err, repositories.ErrReservationNotFound) {
			response.Abort404(c, "房间没有占用记录")
			return
		}
		response.ServerError(c, err)
		return
	}
	response.Data(c, reservation)
}

// Hold 占住房间（先到先得）
func (ct *ReservationController) Hold(c *gin.Context) {
	request, err := requests.ValidateReservationAction(c)
	if err != nil {
		response.BadRequest(c, err, "请求参数验证失败")
		return
	}

	roomID := c.Param("room_id")
	err = ct.rooms.Hold(c.Request.Context(), roomID, request.TenantID, request.PaymentID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotAvailable) {
			response.Abort400(c, "房间已被占住")
			return
		}
		response.ServerError(c, err, "占房失败")
		return
	}

	response.Data(c, gin.H{"room_id": roomID, "status": "held"})
}

// Confirm 押金到账后确认占房
func (ct *ReservationController) Confirm(c *gin.Context) {
	request, err := requests.ValidateReservationAction(c)
	if err != nil {
		response.BadRequest(c, err, "请求参数验证失败")
		return
	}

	roomID := c.Param("room_id")
	err = ct.rooms.Confirm(c.Request.Context(), roomID, request.PaymentID)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentMismatch) {
			response.Abort400(c, "支付单与当前占房记录不匹配")
			return
		}
		response.ServerError(c, err, "确认占房失败")
		return
	}

	response.Data(c, gin.H{"room_id": roomID, "status": "confirmed"})
}

// Release 释放占房（支付失败或人工取消）
func (ct *ReservationController) Release(c *gin.Context) {
	request, err := requests.ValidateReservationAction(c)
	if err != nil {
		response.BadRequest(c, err, "请求参数验证失败")
		return
	}

	roomID := c.Param("room_id")
	err = ct.rooms.Release(c.Request.Context(), roomID, request.PaymentID)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentMismatch) {
			response.Abort400(c, "支付单与当前占房记录不匹配")
			return
		}
		response.ServerError(c, err, "释放占房失败")
		return
	}

	response.Data(c, gin.H{"room_id": roomID, "status": "available"})
}

// Occupy 签约入住，confirmed → occupied
func (ct *ReservationController) Occupy(c *gin.Context) {
	request, err := requests.ValidateOccupy(c)
	if err != nil {
		response.BadRequest(c, err, "请求参数验证失败")
		return
	}

	roomID := c.Param("room_id")
	err = ct.rooms.Occupy(c.Request.Context(), roomID, request.ContractID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotAvailable) {
			response.Abort400(c, "房间未处于已确认状态，无法入住")
			return
		}
		response.ServerError(c, err, "入住登记失败")
		return
	}

	response.Data(c, gin.H{"room_id": roomID, "status": "occupied"})
}

// Vacate 退租，occupied → available
func (ct *ReservationController) Vacate(c *gin.Context) {
	roomID := c.Param("room_id")
	err := ct.rooms.Vacate(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotAvailable) {
			response.Abort400(c, "房间未处于入住状态")
			return
		}
		response.ServerError(c, err, "退租登记失败")
		return
	}

	response.Data(c, gin.H{"room_id": roomID, "status": "available"})
}

// Cleanup 释放超时未付款的占房记录
func (ct *ReservationController) Cleanup(c *gin.Context) {
	timeout := time.Duration(config.GetInt("reservation.hold_timeout_minutes")) * time.Minute
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}

	released, err := ct.rooms.ReleaseExpired(c.Request.Context(), timeout)
	if err != nil {
		response.ServerError(c, err, "清理超时占房失败")
		return
	}

	if len(released) > 0 {
		logger.InfoString("Reservation", "Cleanup", "释放超时占房 "+strings.Join(released, ", "))
	}

	response.Data(c, gin.H{
		"released_count": len(released),
		"released_rooms": released,
	})
}
