/*
Package servicebus provides the in-process mediator and domain event emitter.
The Mediator routes each command or query to exactly one handler resolved through a
bus.DependencyProvider; the Emitter fans domain events out to filtered subscriptions.
Bus combines both and forwards integration events to an optional bus.EventPublisher.
*/
package servicebus
