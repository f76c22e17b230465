// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import "go.uber.org/zap"

// ProgressEvent is emitted on every state transition for an external
// presentation layer. Emission is fire-and-forget: a slow or absent consumer
// never blocks a transition.
type ProgressEvent struct {
	Stage        Stage  `json:"stage"`
	Iteration    int    `json:"iteration"`
	Message      string `json:"message"`
	SourcesSoFar int    `json:"sources_so_far"`
}

// Emitter consumes progress events. Implementations must not block.
type Emitter interface {
	Emit(ProgressEvent)
}

// ChannelEmitter forwards events to a buffered channel, dropping events when
// the consumer falls behind.
type ChannelEmitter struct {
	ch chan ProgressEvent
}

// NewChannelEmitter returns an emitter with the given buffer size.
func NewChannelEmitter(buffer int) *ChannelEmitter {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelEmitter{ch: make(chan ProgressEvent, buffer)}
}

// Events returns the consumer side of the stream.
func (e *ChannelEmitter) Events() <-chan ProgressEvent {
	return e.ch
}

// Emit forwards the event without blocking; events are dropped when the
// buffer is full.
func (e *ChannelEmitter) Emit(ev ProgressEvent) {
	select {
	case e.ch <- ev:
	default:
	}
}

// Close closes the stream. Call only after the job has terminated.
func (e *ChannelEmitter) Close() {
	close(e.ch)
}

// LogEmitter writes events to a zap logger.
type LogEmitter struct {
	Log *zap.Logger
}

// Emit logs the event.
func (e LogEmitter) Emit(ev ProgressEvent) {
	e.Log.Info("research progress",
		zap.String("stage", string(ev.Stage)),
		zap.Int("iteration", ev.Iteration),
		zap.Int("sources_so_far", ev.SourcesSoFar),
		zap.String("message", ev.Message))
}

// MultiEmitter fans one event out to several emitters.
type MultiEmitter []Emitter

// Emit forwards the event to every emitter.
func (m MultiEmitter) Emit(ev ProgressEvent) {
	for _, e := range m {
		e.Emit(ev)
	}
}
