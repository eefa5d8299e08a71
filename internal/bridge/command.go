// Package bridge turns typed operation calls into self-contained executable
// text for the page context and carries the outcome back. A call is a tagged
// variant: capability slot, operation name and named JSON arguments. The text
// that carries it is a uniform dispatcher with the command embedded by value.
package bridge

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NotReadyMarker prefixes the error the dispatcher throws when the registry
// slot or operation is missing. Client classifies on it.
const NotReadyMarker = "capability not ready"

// ExecutableText is an immediately-invoked async expression that needs nothing
// from the controller: every argument is a literal inside it.
type ExecutableText string

func (t ExecutableText) String() string { return string(t) }

// Command is one operation call.
type Command struct {
	Capability string `json:"capability"`
	Operation  string `json:"operation"`
	// Params is the positional order of Args.
	Params []string                       `json:"params"`
	Args   map[string]jsoniter.RawMessage `json:"args"`
}

// Param is a named argument.
type Param struct {
	Name  string
	Value interface{}
}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// NewCommand encodes params into a command. Every value must survive a JSON
// round trip; functions, channels and cycles are rejected.
func NewCommand(capability, operation string, params ...Param) (Command, error) {
	cmd := Command{
		Capability: capability,
		Operation:  operation,
		Params:     make([]string, 0, len(params)),
		Args:       make(map[string]jsoniter.RawMessage, len(params)),
	}
	for _, p := range params {
		if _, dup := cmd.Args[p.Name]; dup {
			return Command{}, fmt.Errorf("duplicate parameter %q", p.Name)
		}
		raw, err := json.Marshal(p.Value)
		if err != nil {
			return Command{}, fmt.Errorf("parameter %q is not JSON-serializable: %w", p.Name, err)
		}
		cmd.Params = append(cmd.Params, p.Name)
		cmd.Args[p.Name] = raw
	}
	return cmd, cmd.Validate()
}

// Validate checks the command is well formed.
func (c Command) Validate() error {
	if !identifier.MatchString(c.Capability) {
		return fmt.Errorf("invalid capability name %q", c.Capability)
	}
	if !identifier.MatchString(c.Operation) {
		return fmt.Errorf("invalid operation name %q", c.Operation)
	}
	if len(c.Params) != len(c.Args) {
		return fmt.Errorf("%s.%s: %d params but %d args", c.Capability, c.Operation, len(c.Params), len(c.Args))
	}
	for _, name := range c.Params {
		raw, ok := c.Args[name]
		if !ok {
			return fmt.Errorf("%s.%s: parameter %q has no value", c.Capability, c.Operation, name)
		}
		if !json.Valid(raw) {
			return fmt.Errorf("%s.%s: parameter %q is not valid JSON", c.Capability, c.Operation, name)
		}
	}
	return nil
}

// Key identifies the command for logging: "capability.operation".
func (c Command) Key() string {
	return c.Capability + "." + c.Operation
}

// Bind decodes the named argument into v.
func (c Command) Bind(name string, v interface{}) error {
	raw, ok := c.Args[name]
	if !ok {
		return fmt.Errorf("%s has no parameter %q", c.Key(), name)
	}
	return json.Unmarshal(raw, v)
}

const literalPrefix = "const command = "

const dispatcher = `(async () => {
  ` + literalPrefix + `%s;
  const target = window[command.capability];
  if (!target || typeof target[command.operation] !== "function") {
    throw new Error("` + NotReadyMarker + `: " + command.capability + "." + command.operation);
  }
  const args = command.params.map((name) => command.args[name]);
  try {
    return await target[command.operation](...args);
  } catch (err) {
    console.error("[" + command.capability + "." + command.operation + "]", err && err.message ? err.message : err);
    throw err;
  }
})()`

// Build renders the dispatcher text for cmd.
func Build(cmd Command) (ExecutableText, error) {
	if cmd.Params == nil {
		cmd.Params = []string{}
	}
	if cmd.Args == nil {
		cmd.Args = map[string]jsoniter.RawMessage{}
	}
	if err := cmd.Validate(); err != nil {
		return "", err
	}
	literal, err := encodeLiteral(cmd)
	if err != nil {
		return "", err
	}
	return ExecutableText(fmt.Sprintf(dispatcher, literal)), nil
}

// Text is Build for commands known to be valid, such as those the typed
// factories produce. It panics on an invalid command.
func (c Command) Text() ExecutableText {
	t, err := Build(c)
	if err != nil {
		panic(err)
	}
	return t
}

// encodeLiteral produces JSON that is also a safe JavaScript expression. JSON
// allows raw U+2028 and U+2029 inside strings; older JavaScript engines treat
// them as line terminators.
func encodeLiteral(cmd Command) (string, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("encode command: %w", err)
	}
	b = bytes.ReplaceAll(b, []byte("\u2028"), []byte(`\u2028`))
	b = bytes.ReplaceAll(b, []byte("\u2029"), []byte(`\u2029`))
	return string(b), nil
}

// ParseCommand recovers the command embedded in executable text.
func ParseCommand(text ExecutableText) (Command, error) {
	s := string(text)
	i := strings.Index(s, literalPrefix)
	if i < 0 {
		return Command{}, fmt.Errorf("no embedded command literal")
	}
	var cmd Command
	dec := json.NewDecoder(strings.NewReader(s[i+len(literalPrefix):]))
	if err := dec.Decode(&cmd); err != nil {
		return Command{}, fmt.Errorf("decode command literal: %w", err)
	}
	return cmd, cmd.Validate()
}
