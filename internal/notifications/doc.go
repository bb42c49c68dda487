// Package notifications pushes run outcomes to an ntfy topic. When no topic
// is configured NewService returns a notifier that does nothing.
package notifications
