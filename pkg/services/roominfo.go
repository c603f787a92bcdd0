package services

import (
	"context"

	"zufang/pkg/config"
)

// RoomInfo 房源服务返回的房间属性
// 价格、押金等属性归房源服务，本服务只读取
type RoomInfo struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	DepositMinor int64  `json:"deposit"`
}

// RoomInfoClient 房源服务客户端
type RoomInfoClient struct {
	*Client
}

// NewRoomInfoClient 创建房源服务客户端
func NewRoomInfoClient() *RoomInfoClient {
	return &RoomInfoClient{
		Client: NewClient("room-service", config.GetString("services.room_url")),
	}
}

// Get 获取房间属性
func (c *RoomInfoClient) Get(ctx context.Context, roomID string) (*RoomInfo, error) {
	var info RoomInfo
	if err := c.get(ctx, "/api/rooms/"+roomID, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
