package rabbitmq

// RoutingKeyEndingSoon — ключ сообщений о скором окончании подписки.
const RoutingKeyEndingSoon = "ending_soon"

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.ending_soon", RoutingKey: RoutingKeyEndingSoon},
	}
}
