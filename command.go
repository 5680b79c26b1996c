package boxsh

import "github.com/boxsh/boxsh/interp"

// Command is the host's collaborator for a name the interpreter does not
// resolve to a function or builtin (§6 "Command trait").
type Command = interp.Command

// CommandContext is handed to a Command on every invocation (§6).
type CommandContext = interp.CommandContext

// EnvView is the live, mutable environment view a Command sees through its
// CommandContext.
type EnvView = interp.EnvView

// ExecResult is the outcome of running one external Command.
type ExecResult = interp.ExecResult

// RunOptions configures a re-entrant Exec call a Command makes through its
// CommandContext.
type RunOptions = interp.Options

// Limits bounds the execution counters of §4.7.
type Limits = interp.Limits
