package service

import (
	"context"
	"errors"

	"nft_auction/auction"
	"nft_auction/utils"

	"go.uber.org/zap"
)

// MQPublisher 把拍卖事件投递到RabbitMQ，由消费者写入事件表
type MQPublisher struct{}

func (MQPublisher) Publish(ctx context.Context, ev auction.Event) error {
	return utils.PublishEvent(ctx, ev.RoutingKey(), ev)
}

// StorePublisher 本地模式直接写入存储并记录日志
type StorePublisher struct {
	Store Store
}

func (p StorePublisher) Publish(ctx context.Context, ev auction.Event) error {
	utils.Logger.Info("拍卖事件",
		zap.String("type", string(ev.Type)),
		zap.String("auction_id", ev.AuctionID),
		zap.String("asset_id", ev.AssetID),
		zap.String("event_id", ev.ID),
	)
	return p.Store.SaveEvent(ctx, ev)
}

// StartEventConsumer 启动事件消费，入库失败的消息会重新入队
func StartEventConsumer(svc AuctionService) error {
	return utils.ConsumeEvents(func(routingKey string, body []byte) error {
		err := svc.HandleEvent(context.Background(), body)
		if errors.Is(err, ErrInvalidParam) {
			// 缺少事件ID的消息无法去重，直接丢弃
			utils.Logger.Warn("丢弃无效事件", zap.String("routing_key", routingKey), zap.ByteString("body", body))
			return nil
		}
		return err
	})
}
