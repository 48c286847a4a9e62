package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery is a purge job received from RabbitMQ
type Delivery struct {
	job     *Job
	tag     uint64
	channel *amqp.Channel
}

var _ Receipt = (*Delivery)(nil)

// Job returns the decoded purge job
func (d *Delivery) Job() *Job {
	return d.job
}

// Ack settles the delivery as done
func (d *Delivery) Ack() error {
	return d.channel.Ack(d.tag, false)
}

// DeadLetter rejects the delivery without requeue, which routes it to the DLQ
func (d *Delivery) DeadLetter() error {
	return d.channel.Nack(d.tag, false, false)
}

// requeue hands the delivery back to the broker for another consumer
func (d *Delivery) requeue() error {
	return d.channel.Nack(d.tag, false, true)
}
