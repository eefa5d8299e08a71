package jsexec

// ScriptError is a value thrown by evaluated text or the rejection reason of the
// promise it returned. Message is the reason verbatim, so a rejection with
// "insufficient funds" reads exactly that on the controller side.
type ScriptError struct {
	Message  string
	Rejected bool
}

func (e *ScriptError) Error() string {
	return e.Message
}
