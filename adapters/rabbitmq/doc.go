/*
Package rabbitmq publishes integration events (rate-limit alerts) to a RabbitMQ topic exchange.
It includes an auto-reconnect publisher and supports header propagation via a bus.HeaderPropagator.
*/
package rabbitmq
