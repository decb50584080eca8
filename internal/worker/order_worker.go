package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/model"
	"github.com/shopworks/storefront-api/internal/service"
)

const (
	orderQueueName = service.OrderQueueName
	dlxExchange    = "orders.dlx"
	dlqQueueName   = "orders.dlq"
	idempotencyTTL = 24 * time.Hour
)

// OrderWorker consumes order-placed messages and moves fresh orders from
// Ordered to Confirmed in both the user's history and the global index. The
// checkout batch itself never waits on this; confirmation is downstream
// processing.
type OrderWorker struct {
	channel     *amqp.Channel
	store       docstore.Store
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewOrderWorker(ch *amqp.Channel, store docstore.Store, redisClient *redis.Client, log *slog.Logger) *OrderWorker {
	return &OrderWorker{
		channel:     ch,
		store:       store,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares exchanges, queues, and bindings (DLX/DLQ).
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, orderQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(orderQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": orderQueueName,
	}); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *OrderWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(orderQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("order worker started")
	return nil
}

func (w *OrderWorker) Stop() { close(w.done) }

func (w *OrderWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var placed model.OrderPlacedMessage
	if err := json.Unmarshal(msg.Body, &placed); err != nil {
		w.log.Error("unmarshal order message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", placed.OrderID, "user_id", placed.UserID)

	// Idempotency check via Redis
	idempotencyKey := "order_confirmed:" + placed.OrderID
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("order already confirmed, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.ConfirmOrder(ctx, placed); err != nil {
		log.Error("confirm order failed", "error", err)
		_ = msg.Nack(false, false) // DLQ
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("order confirmed")
}

// ConfirmOrder transitions both stored copies of the order from Ordered to
// Confirmed in one transaction. Orders in any other state are left alone.
func (w *OrderWorker) ConfirmOrder(ctx context.Context, placed model.OrderPlacedMessage) error {
	userOrders := service.UserOrdersCollection(placed.UserID)
	return w.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(ctx, service.OrdersCollection, placed.OrderID)
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("order %s not found", placed.OrderID)
		}
		if err != nil {
			return err
		}
		var order model.Order
		if err := doc.Decode(&order); err != nil {
			return err
		}
		if order.Status != model.OrderStatusOrdered {
			return nil
		}
		order.Status = model.OrderStatusConfirmed
		if err := tx.Set(ctx, service.OrdersCollection, placed.OrderID, order); err != nil {
			return err
		}
		return tx.Set(ctx, userOrders, placed.OrderID, order)
	})
}
