// This package contains the slash command handlers.
//
// There are 2 functions per command, one for adding the handler &
// command description to AppState (public), and one for handling the
// interaction (private).
//
// Only return errors when it's the bot's fault, nil if the user's fault
// (missing role, cooldown). Errors end up as a generic ephemeral message.
package handler
