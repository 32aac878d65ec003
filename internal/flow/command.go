package flow

// Command is a fire-and-forget instruction to the host, emitted alongside
// state transitions and drained by the host loop.
type Command interface {
	commandName() string
}

// DonateCommand hands a finished payload to the host under a session-scoped
// key. The JSON is forwarded verbatim; the engine never inspects it.
type DonateCommand struct {
	Key  string
	JSON string
}

// ExitCommand signals end of session. Code 0 is success.
type ExitCommand struct {
	Code    int
	Message string
}

func (DonateCommand) commandName() string { return "donate" }
func (ExitCommand) commandName() string   { return "exit" }
