package utils

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	AuctionExchange   = "nft_auction_exchange"
	AuctionEventQueue = "nft_auction_event_queue"
)

// AuctionRoutingKeys 事件队列绑定的路由键
var AuctionRoutingKeys = []string{"auction.created", "auction.ended", "auction.withdrawn"}

var RabbitMQConn *amqp.Connection
var RabbitMQChannel *amqp.Channel

var publishMu sync.Mutex

// InitRabbitMQ 初始化RabbitMQ
func InitRabbitMQ(url string) error {
	// 建立连接
	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	RabbitMQConn = conn

	// 建立通道
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	RabbitMQChannel = ch

	// 声明交换机和队列
	return declareExchangeAndQueue()
}

// 声明交换机和队列（拍卖事件队列）
func declareExchangeAndQueue() error {
	err := RabbitMQChannel.ExchangeDeclare(
		AuctionExchange, // 交换机名
		"direct",        // 类型
		true,            // 持久化
		false,           // 自动删除
		false,           // 内部
		false,           // 等待
		nil,             // 参数
	)
	if err != nil {
		return err
	}

	_, err = RabbitMQChannel.QueueDeclare(
		AuctionEventQueue, // 队列名
		true,              // 持久化
		false,             // 自动删除
		false,             // 排他
		false,             // 等待
		nil,               // 参数
	)
	if err != nil {
		return err
	}

	for _, key := range AuctionRoutingKeys {
		if err := RabbitMQChannel.QueueBind(AuctionEventQueue, key, AuctionExchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}

// PublishEvent 发布拍卖事件
func PublishEvent(ctx context.Context, routingKey string, payload interface{}) error {
	if RabbitMQChannel == nil {
		return errors.New("rabbitmq not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	publishMu.Lock()
	defer publishMu.Unlock()
	return RabbitMQChannel.Publish(
		AuctionExchange, // 交换机名
		routingKey,      // 路由键
		false,           // 强制
		false,           // 立即
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg,
			DeliveryMode: amqp.Persistent, // 持久化
			Timestamp:    time.Now(),
		},
	)
}

// ConsumeEvents 消费拍卖事件
func ConsumeEvents(handler func(routingKey string, body []byte) error) error {
	msgs, err := RabbitMQChannel.Consume(
		AuctionEventQueue, // 队列名
		"",                // 消费者标签
		false,             // 自动确认
		false,             // 排他
		false,             // 不本地
		false,             // 等待
		nil,               // 参数
	)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			if err := handler(d.RoutingKey, d.Body); err != nil {
				Logger.Error("处理拍卖事件失败", zap.String("routing_key", d.RoutingKey), zap.Error(err))
				var syntaxErr *json.SyntaxError
				// 格式错误的消息不重新入队
				d.Nack(false, !errors.As(err, &syntaxErr))
				continue
			}
			d.Ack(false)
		}
	}()

	return nil
}

// CloseRabbitMQ 关闭RabbitMQ连接
func CloseRabbitMQ() {
	if RabbitMQChannel != nil {
		RabbitMQChannel.Close()
	}
	if RabbitMQConn != nil {
		RabbitMQConn.Close()
	}
}
