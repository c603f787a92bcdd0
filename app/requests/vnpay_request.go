package requests

import (
	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"
)

// RoomDepositRequest 占房押金支付请求
type RoomDepositRequest struct {
	RoomID      string `json:"room_id" valid:"room_id"`
	CheckInDate string `json:"check_in_date" valid:"check_in_date"`
}

// ValidateRoomDeposit 验证占房押金请求
func ValidateRoomDeposit(c *gin.Context) (RoomDepositRequest, error) {
	rules := govalidator.MapData{
		"room_id":       []string{"required", "min:1", "max:64"},
		"check_in_date": []string{"date"},
	}
	messages := govalidator.MapData{
		"room_id": []string{
			"required:房间 ID 不能为空",
			"max:房间 ID 长度不能超过 64 个字符",
		},
		"check_in_date": []string{
			"date:入住日期格式不正确",
		},
	}
	return ValidateRequest[RoomDepositRequest](c, rules, messages)
}

// BookingDepositRequest 预订订金支付请求
type BookingDepositRequest struct {
	BookingID string `json:"booking_id" valid:"booking_id"`
}

// ValidateBookingDeposit 验证预订订金请求
func ValidateBookingDeposit(c *gin.Context) (BookingDepositRequest, error) {
	rules := govalidator.MapData{
		"booking_id": []string{"required", "min:1", "max:64"},
	}
	messages := govalidator.MapData{
		"booking_id": []string{
			"required:预订 ID 不能为空",
			"max:预订 ID 长度不能超过 64 个字符",
		},
	}
	return ValidateRequest[BookingDepositRequest](c, rules, messages)
}

// BillPaymentRequest 账单支付请求
type BillPaymentRequest struct {
	BillID string `json:"bill_id" valid:"bill_id"`
}

// ValidateBillPayment 验证账单支付请求
func ValidateBillPayment(c *gin.Context) (BillPaymentRequest, error) {
	rules := govalidator.MapData{
		"bill_id": []string{"required", "min:1", "max:64"},
	}
	messages := govalidator.MapData{
		"bill_id": []string{
			"required:账单 ID 不能为空",
			"max:账单 ID 长度不能超过 64 个字符",
		},
	}
	return ValidateRequest[BillPaymentRequest](c, rules, messages)
}

// ReservationActionRequest 内部占房操作请求
type ReservationActionRequest struct {
	TenantID  string `json:"tenant_id"`
	PaymentID string `json:"payment_id" valid:"payment_id"`
}

// ValidateReservationAction 验证内部占房操作请求
func ValidateReservationAction(c *gin.Context) (ReservationActionRequest, error) {
	rules := govalidator.MapData{
		"payment_id": []string{"required", "min:1", "max:32"},
	}
	messages := govalidator.MapData{
		"payment_id": []string{
			"required:支付单号不能为空",
		},
	}
	return ValidateRequest[ReservationActionRequest](c, rules, messages)
}

// OccupyRequest 入住请求
type OccupyRequest struct {
	ContractID string `json:"contract_id" valid:"contract_id"`
}

// ValidateOccupy 验证入住请求
func ValidateOccupy(c *gin.Context) (OccupyRequest, error) {
	rules := govalidator.MapData{
		"contract_id": []string{"required", "min:1", "max:64"},
	}
	messages := govalidator.MapData{
		"contract_id": []string{
			"required:合同号不能为空",
		},
	}
	return ValidateRequest[OccupyRequest](c, rules, messages)
}
