// Package state provides a lightweight FSM/session store for Telegram bots.
// Sessions carry a typed draft record instead of a free-form key/value map, so
// each bot declares the exact shape of its conversation data.
package state
