// Package commands routes inbound chat messages to bot command
// handlers. A bounded worker pool executes handlers so one slow
// command cannot stall the update stream; every handler runs behind
// panic-recovery, request logging, and timeout middleware.
package commands
