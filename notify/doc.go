// Package notify delivers workflow lifecycle events to external channels.
//
// The engine emits an Event at run and stage boundaries; notifiers fan
// them out to logs, Slack, or arbitrary webhooks. Delivery is best-effort:
// a failing notifier never fails the run.
package notify
