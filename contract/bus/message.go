package bus

// Command is a marker interface for commands (intent to change state).
// A command has exactly one handler and no result. Embed BaseCommand to implement it.
type Command interface{ isCommand() }

// CommandWithResult is a Command variant whose handler yields a value of type R,
// typically a generated identifier. Embed BaseCommandWithResult[R] to implement it.
type CommandWithResult[R any] interface {
	Command
	resultOf() R
}

// Query is a marker interface for queries yielding R. Queries must not change state.
// Embed BaseQuery[R] to implement it.
type Query[R any] interface {
	isQuery()
	responseOf() R
}

// BaseCommand marks a struct as a Command.
type BaseCommand struct{}

func (BaseCommand) isCommand() {}

// BaseCommandWithResult marks a struct as a CommandWithResult[R].
type BaseCommandWithResult[R any] struct{}

func (BaseCommandWithResult[R]) isCommand() {}

func (BaseCommandWithResult[R]) resultOf() (r R) { return r }

// BaseQuery marks a struct as a Query[R].
type BaseQuery[R any] struct{}

func (BaseQuery[R]) isQuery() {}

func (BaseQuery[R]) responseOf() (r R) { return r }

type queryMarker interface{ isQuery() }

// IsCommand reports whether v is a command or a command with result.
func IsCommand(v any) bool {
	_, ok := v.(Command)
	return ok
}

// IsQuery reports whether v is a query.
func IsQuery(v any) bool {
	_, ok := v.(queryMarker)
	return ok
}
