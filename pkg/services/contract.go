package services

import (
	"context"

	"zufang/pkg/config"
	"zufang/pkg/logger"
)

// Contract 合同服务返回的合同信息
type Contract struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`
	Status string `json:"status"`
}

// ContractClient 合同服务客户端
type ContractClient struct {
	*Client
}

// NewContractClient 创建合同服务客户端
func NewContractClient() *ContractClient {
	return &ContractClient{
		Client: NewClient("contract-service", config.GetString("services.contract_url")),
	}
}

// HasActiveContract 用户是否已有生效中的租房合同
//
// 已有合同的用户不允许再交占房押金。合同服务不可达时放行，
// 占房押金本身可退，不因依赖抖动挡住正常用户
func (c *ContractClient) HasActiveContract(ctx context.Context, userID string) bool {
	var contracts []Contract
	if err := c.get(ctx, "/api/contracts/user/"+userID, &contracts); err != nil {
		logger.LogWarnIf(err)
		return false
	}
	for _, contract := range contracts {
		if contract.Status == "active" {
			return true
		}
	}
	return false
}

// AutoCreate 占房押金到账后自动生成合同草稿
func (c *ContractClient) AutoCreate(ctx context.Context, roomID, tenantID, paymentID, checkInDate string) error {
	body := map[string]string{
		"room_id":    roomID,
		"tenant_id":  tenantID,
		"payment_id": paymentID,
	}
	if checkInDate != "" {
		body["check_in_date"] = checkInDate
	}
	return c.post(ctx, "/internal/contracts/auto-create", body, nil)
}
