// Package notifications sends push notifications for job outcomes via ntfy.
package notifications
