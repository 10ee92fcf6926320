package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/z-wentao/voicedub/pkg/models"
)

// RabbitMQQueue RabbitMQ 事件队列
// 发布和消费使用独立连接；消费端手动 Ack
type RabbitMQQueue struct {
	url       string
	queueName string
	closed    chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc

	publishConn    *amqp.Connection
	publishChannel *amqp.Channel
	publishMutex   sync.Mutex

	consumeConn    *amqp.Connection
	consumeChannel *amqp.Channel
	deliveries     <-chan amqp.Delivery

	// RabbitMQ Channel 不是并发安全的
	ackMutex sync.Mutex
}

// NewRabbitMQQueue 创建 RabbitMQ 队列
func NewRabbitMQQueue(url, queueName string) (*RabbitMQQueue, error) {
	ctx, cancel := context.WithCancel(context.Background())

	rq := &RabbitMQQueue{
		url:       url,
		queueName: queueName,
		closed:    make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}

	if err := rq.setupPublisher(); err != nil {
		cancel()
		return nil, fmt.Errorf("初始化发布者失败: %w", err)
	}

	if err := rq.setupConsumer(); err != nil {
		cancel()
		rq.closePublisher()
		return nil, fmt.Errorf("初始化消费者失败: %w", err)
	}

	log.Printf("✓ RabbitMQ 事件队列初始化成功 (队列: %s)", queueName)
	return rq, nil
}

// dialChannel 建立连接并声明持久化队列（幂等）
func (rq *RabbitMQQueue) dialChannel() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(rq.url)
	if err != nil {
		return nil, nil, fmt.Errorf("连接失败: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("创建 RabbitMQ Channel 失败: %w", err)
	}

	_, err = ch.QueueDeclare(
		rq.queueName, // name
		true,         // durable
		false,        // autoDelete
		false,        // exclusive
		false,        // noWait
		nil,          // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("声明队列失败: %w", err)
	}
	return conn, ch, nil
}

func (rq *RabbitMQQueue) setupPublisher() error {
	conn, ch, err := rq.dialChannel()
	if err != nil {
		return err
	}
	rq.publishConn = conn
	rq.publishChannel = ch

	log.Println("✓ RabbitMQ 发布者连接已建立")
	return nil
}

func (rq *RabbitMQQueue) setupConsumer() error {
	conn, ch, err := rq.dialChannel()
	if err != nil {
		return err
	}

	if err := ch.Qos(10, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("设置 QoS 失败: %w", err)
	}

	deliveries, err := ch.Consume(
		rq.queueName,      // queue
		"voicedub-events", // consumer tag
		false,             // autoAck
		false,             // exclusive
		false,             // noLocal
		false,             // noWait
		nil,               // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("启动消费失败: %w", err)
	}

	rq.consumeConn = conn
	rq.consumeChannel = ch
	rq.deliveries = deliveries

	log.Println("✓ RabbitMQ 消费者已启动")
	return nil
}

// Publish 发布事件（5 秒超时）
func (rq *RabbitMQQueue) Publish(ctx context.Context, event *models.TranslationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	rq.publishMutex.Lock()
	defer rq.publishMutex.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = rq.publishChannel.PublishWithContext(
		ctx,
		"",           // 默认 exchange
		rq.queueName, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Body:         body,
			Timestamp:    event.CreatedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("发布事件失败: %w", err)
	}
	return nil
}

// Dequeue 取出一条事件，解析成功后 Ack，失败 Nack 且不重新入队
func (rq *RabbitMQQueue) Dequeue(ctx context.Context) (*models.TranslationEvent, error) {
	select {
	case <-rq.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case delivery, ok := <-rq.deliveries:
		if !ok {
			return nil, fmt.Errorf("消费通道已关闭")
		}

		var event models.TranslationEvent
		if err := json.Unmarshal(delivery.Body, &event); err != nil {
			rq.nack(delivery.DeliveryTag)
			return nil, fmt.Errorf("反序列化事件失败: %w", err)
		}

		if err := rq.ack(delivery.DeliveryTag); err != nil {
			log.Printf("⚠️ Ack 失败: %v", err)
		}
		return &event, nil
	}
}

func (rq *RabbitMQQueue) ack(deliveryTag uint64) error {
	rq.ackMutex.Lock()
	defer rq.ackMutex.Unlock()
	return rq.consumeChannel.Ack(deliveryTag, false)
}

func (rq *RabbitMQQueue) nack(deliveryTag uint64) {
	rq.ackMutex.Lock()
	defer rq.ackMutex.Unlock()
	if err := rq.consumeChannel.Nack(deliveryTag, false, false); err != nil {
		log.Printf("⚠️ Nack 失败: %v", err)
	}
}

// Close 关闭队列
func (rq *RabbitMQQueue) Close() error {
	select {
	case <-rq.closed:
		return nil
	default:
		close(rq.closed)
		rq.cancel()

		if rq.consumeChannel != nil {
			rq.consumeChannel.Close()
		}
		if rq.consumeConn != nil {
			rq.consumeConn.Close()
		}
		rq.closePublisher()

		log.Println("✓ RabbitMQ 事件队列已关闭")
		return nil
	}
}

func (rq *RabbitMQQueue) closePublisher() {
	if rq.publishChannel != nil {
		rq.publishChannel.Close()
	}
	if rq.publishConn != nil {
		rq.publishConn.Close()
	}
}
