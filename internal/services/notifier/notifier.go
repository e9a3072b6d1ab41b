// Package notifier публикует в RabbitMQ уведомления о подписках, которые скоро
// заканчиваются. Каждая запись объявляется один раз для своей даты окончания.
package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscriber-desk/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscriber-desk/internal/lib/sl"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
	"github.com/magabrotheeeer/subscriber-desk/internal/viewmodel"
)

// Publisher отправляет сообщение с заданным ключом маршрутизации.
type Publisher interface {
	Publish(routingKey, messageID string, message any) error
}

// EndingSoon — тело сообщения.
type EndingSoon struct {
	MessageID    string      `json:"message_id"`
	SubscriberID string      `json:"subscriber_id"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	Phone        string      `json:"phone"`
	EndDate      models.Date `json:"end_date"`
	DaysLeft     int         `json:"days_left"`
}

type Notifier struct {
	log       *slog.Logger
	publisher Publisher
	newID     func() string

	mu        sync.Mutex
	announced map[string]string // id записи -> дата окончания
}

func New(log *slog.Logger, publisher Publisher) *Notifier {
	return &Notifier{
		log:       log,
		publisher: publisher,
		newID:     func() string { return uuid.NewString() },
		announced: make(map[string]string),
	}
}

// Notify публикует ещё не объявленные записи, у которых подписка скоро заканчивается.
// Ошибки публикации логируются, запись остаётся необъявленной до следующего снимка.
func (n *Notifier) Notify(_ context.Context, subs []models.Subscriber, now time.Time) {
	const op = "services.notifier.Notify"
	log := n.log.With(slog.String("op", op))

	n.mu.Lock()
	defer n.mu.Unlock()

	present := make(map[string]struct{}, len(subs))
	sent := 0
	for _, sub := range subs {
		present[sub.ID] = struct{}{}
		if !viewmodel.Classify(sub, now).EndingSoon {
			continue
		}
		end := sub.EndDate.String()
		if n.announced[sub.ID] == end {
			continue
		}

		msg := EndingSoon{
			MessageID:    n.newID(),
			SubscriberID: sub.ID,
			FirstName:    sub.FirstName,
			LastName:     sub.LastName,
			Phone:        sub.Phone,
			EndDate:      sub.EndDate,
			DaysLeft:     viewmodel.DaysUntil(sub.EndDate.Time, now),
		}
		if err := n.publisher.Publish(rabbitmq.RoutingKeyEndingSoon, msg.MessageID, msg); err != nil {
			log.Error("failed to publish message", slog.String("subscriber_id", sub.ID), sl.Err(err))
			continue
		}
		n.announced[sub.ID] = end
		sent++
	}

	// удалённые записи забываются
	for id := range n.announced {
		if _, ok := present[id]; !ok {
			delete(n.announced, id)
		}
	}

	if sent > 0 {
		log.Info("ending soon notifications published", slog.Int("count", sent))
	}
}
