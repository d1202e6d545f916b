// Package state keeps per-chat conversation values for Telegram bots.
// Values expire after an idle period; nothing here touches persisted records.
package state
