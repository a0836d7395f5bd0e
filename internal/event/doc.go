// Package event provides a pub-sub event bus that lets the sequencer,
// detection arbiter and alert coordinator report what happened without
// knowing who is listening.
//
// # Main Types
//
//   - [Event]: EventType() and Timestamp()
//   - [Bus]: synchronous, concurrency-safe dispatcher
//   - [Handler]: func(Event)
//
// # Event Categories
//
// Challenge: [ChallengeStartedEvent], [ChallengeResolvedEvent].
//
// Detection: [WindowOpenedEvent], [DetectionEvent], [WindowClosedEvent].
//
// Alert: [AlertStartedEvent], [AlertSuppressedEvent], [AlertFinishedEvent],
// [ActuatorFailedEvent].
//
// Session: [SessionEndedEvent].
//
// # Thread Safety
//
// Publish may be called from any goroutine. Handlers run synchronously on
// the publisher's goroutine, so a handler that blocks delays the publisher
// (for example a detector task); keep handlers short.
package event
