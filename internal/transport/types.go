// Package transport defines the chat transport contract and the
// normalized inbound message model used by the command router and the
// notification dispatcher.
package transport

import "context"

// Message is one inbound chat message, normalized away from the
// transport library's own types.
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

// ChatTarget identifies an outbound destination.
type ChatTarget struct {
	ChatID int64
}

// SendOptions carries optional formatting for an outbound message.
type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// BotCommand is a user-visible command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// Adapter is the transport contract implemented per chat platform.
// Start delivers inbound messages to out until ctx is canceled.
type Adapter interface {
	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
}

// CommandMenuUpdater is implemented by adapters that can publish the
// command menu to the platform.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, commands []BotCommand) error
}
