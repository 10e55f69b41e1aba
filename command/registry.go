// Package command implements the R. (32-bit) and R64. (64-bit) bitmap
// commands and the generic key commands over a keyspace.
//
// Every command is described by a Spec: its handler, whether it writes, its
// arity and where its keys sit in the argument list. A Registry resolves a
// command line to its Spec, locks the shards of the keys it touches and runs
// the handler.
//
// Handlers that change the keyspace call Ctx.Replicate; Exec then passes the
// command line to the log callback while the key locks are still held, so
// the log order matches the order in which writes were applied.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/reroaring/internal/keyspace"
)

// Flags describe how a command touches the keyspace.
type Flags uint8

const (
	// FlagWrite marks commands that may modify keys. They take exclusive
	// shard locks.
	FlagWrite Flags = 1 << iota
	// FlagReadOnly marks commands that only read keys.
	FlagReadOnly
	// FlagAllKeys marks commands that operate on the whole keyspace and lock
	// every shard.
	FlagAllKeys
)

// Handler runs a command.
type Handler func(c *Ctx) (Reply, error)

// Spec describes a command.
type Spec struct {
	// Name is the upper-case command name, including the family prefix.
	Name    string
	Handler Handler
	Flags   Flags
	// Arity counts the command name. A positive value is an exact count; a
	// negative value -n means at least n.
	Arity int
	// MaxArity bounds variadic commands. Zero means unbounded.
	MaxArity int
	// FirstKey, LastKey and KeyStep locate the keys in the argument list.
	// LastKey -1 means the last argument. FirstKey 0 means no keys.
	FirstKey int
	LastKey  int
	KeyStep  int
	// KeysFunc overrides the positional key lookup.
	KeysFunc func(args []string) []string
}

// Write reports whether the command may modify keys.
func (s *Spec) Write() bool { return s.Flags&FlagWrite != 0 }

// CheckArity validates the number of arguments, command name included.
func (s *Spec) CheckArity(n int) error {
	switch {
	case s.Arity > 0 && n != s.Arity,
		s.Arity < 0 && n < -s.Arity,
		s.MaxArity > 0 && n > s.MaxArity:
		return &ArityError{Command: strings.ToLower(s.Name)}
	}
	return nil
}

// Keys returns the keys named by args.
func (s *Spec) Keys(args []string) []string {
	if s.KeysFunc != nil {
		return s.KeysFunc(args)
	}
	if s.FirstKey <= 0 || s.FirstKey >= len(args) {
		return nil
	}
	last := s.LastKey
	if last < 0 || last >= len(args) {
		last = len(args) - 1
	}
	step := s.KeyStep
	if step <= 0 {
		step = 1
	}
	keys := make([]string, 0, (last-s.FirstKey)/step+1)
	for i := s.FirstKey; i <= last; i += step {
		keys = append(keys, args[i])
	}
	return keys
}

// Ctx is the per-call state handed to a Handler. The shard locks of every
// key the command names are held for the lifetime of the call.
type Ctx struct {
	Store     *keyspace.Store
	Args      []string
	replicate bool
}

// Replicate marks the call as a keyspace change that must be logged.
func (c *Ctx) Replicate() { c.replicate = true }

// Replicated reports whether Replicate was called.
func (c *Ctx) Replicated() bool { return c.replicate }

// Registry maps command names to specs.
type Registry struct {
	cmds map[string]*Spec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]*Spec)}
}

// Default returns a registry holding the R., R64. and key commands.
func Default() *Registry {
	r := NewRegistry()
	if err := r.Register(Bitmap32Commands()...); err != nil {
		panic(err)
	}
	if err := r.Register(Bitmap64Commands()...); err != nil {
		panic(err)
	}
	if err := r.Register(KeyCommands()...); err != nil {
		panic(err)
	}
	return r
}

// Register adds specs. Names are case-insensitive and must be unique.
func (r *Registry) Register(specs ...Spec) error {
	for i := range specs {
		s := specs[i]
		if s.Name == "" || s.Handler == nil {
			return errors.New("command: spec needs a name and a handler")
		}
		s.Name = strings.ToUpper(s.Name)
		if _, ok := r.cmds[s.Name]; ok {
			return fmt.Errorf("command: %s already registered", s.Name)
		}
		r.cmds[s.Name] = &s
	}
	return nil
}

// Lookup resolves a command name.
func (r *Registry) Lookup(name string) (*Spec, error) {
	s, ok := r.cmds[strings.ToUpper(name)]
	if !ok {
		return nil, &UnknownCommandError{Name: name}
	}
	return s, nil
}

// Names returns the registered command names in ascending order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.cmds))
	for name := range r.cmds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Exec runs args against s. When the command replicates and logFn is
// non-nil, logFn receives args before the key locks are released. A logFn
// error is returned in place of the reply; the in-memory change stays.
func (r *Registry) Exec(s *keyspace.Store, args []string, logFn func(args []string) error) (Reply, error) {
	if len(args) == 0 {
		return Reply{}, ErrEmptyCommand
	}
	spec, err := r.Lookup(args[0])
	if err != nil {
		return Reply{}, err
	}
	if err := spec.CheckArity(len(args)); err != nil {
		return Reply{}, err
	}

	var unlock func()
	if spec.Flags&FlagAllKeys != 0 {
		unlock = s.LockAll(spec.Write())
	} else {
		unlock = s.Lock(spec.Keys(args), spec.Write())
	}
	defer unlock()

	c := &Ctx{Store: s, Args: args}
	reply, err := spec.Handler(c)
	if err != nil {
		return Reply{}, err
	}
	if c.replicate && logFn != nil {
		if err := logFn(args); err != nil {
			return Reply{}, err
		}
	}
	return reply, nil
}
