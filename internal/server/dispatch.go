package server

import (
	"strings"

	"github.com/coolcache/coolcache/internal/resp"
)

// HandlerFunc implements one command. args[0] is the command name as the
// client sent it; handlers that care about casing normalize it themselves.
type HandlerFunc func(s *Server, c *Client, args []string) *resp.Frame

// CommandSpec is one row of the dispatch table: the handler plus the
// arity and write-classification metadata the dispatcher enforces before
// the handler runs.
type CommandSpec struct {
	Handler  HandlerFunc
	MinArity int // total argument count including the command name
	MaxArity int // -1 means unbounded
	IsWrite  bool
}

var commandTable = make(map[string]CommandSpec)

func register(name string, spec CommandSpec) {
	commandTable[strings.ToUpper(name)] = spec
}

// lookup returns the spec for an uppercased command name.
func lookup(name string) (CommandSpec, bool) {
	spec, ok := commandTable[strings.ToUpper(name)]
	return spec, ok
}

var allowedWhileSubscribed = map[string]bool{
	"SUBSCRIBE":    true,
	"UNSUBSCRIBE":  true,
	"PSUBSCRIBE":   true,
	"PUNSUBSCRIBE": true,
	"PING":         true,
	"QUIT":         true,
}
