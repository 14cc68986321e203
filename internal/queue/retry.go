package queue

import (
	"github.com/rabbitmq/amqp091-go"
)

const (
	retriesHeader = "x-retries"
	// MaxRetries is the number of redeliveries before a message is parked
	// in the dead-letter queue.
	MaxRetries = 10
)

// Retries reads the redelivery counter of a message. AMQP tables may carry
// the value as any integer width depending on the publisher.
func Retries(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	case uint8:
		return int(v)
	default:
		return 0
	}
}

// Reroute decides where a failed message goes next. Messages below
// MaxRetries go to the retry queue with an incremented counter; the rest,
// and every permanent failure, go to the dead-letter queue.
func Reroute(queueName string, headers amqp091.Table, permanent bool) (string, amqp091.Table) {
	out := amqp091.Table{}
	for k, v := range headers {
		out[k] = v
	}

	retries := Retries(headers)
	if permanent || retries >= MaxRetries {
		return DeadLetterQueue(queueName), out
	}
	out[retriesHeader] = int32(retries + 1)
	return RetryQueue(queueName), out
}
