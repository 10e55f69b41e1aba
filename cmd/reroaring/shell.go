package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hupe1980/reroaring"
	"github.com/hupe1980/reroaring/persistence"
)

// maxLine bounds one input line. R.SETINTARRAY with many values gets long.
const maxLine = 64 << 20

type shell struct {
	db     *reroaring.DB
	in     io.Reader
	out    io.Writer
	prompt bool
}

// run executes lines from in until EOF, QUIT or ctx is done.
func (s *shell) run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		if s.prompt {
			fmt.Fprint(s.out, "reroaring> ")
		}
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-scanErr:
				return err
			default:
				return nil
			}
		}

		args, err := splitArgs(line)
		if err != nil {
			fmt.Fprintf(s.out, "(error) ERR %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if quit := s.exec(ctx, args); quit {
			return nil
		}
	}
}

// exec runs one command and prints its reply. It reports whether the shell
// should stop.
func (s *shell) exec(ctx context.Context, args []string) bool {
	switch strings.ToUpper(args[0]) {
	case "QUIT", "EXIT":
		return true
	case "HELP":
		names := s.db.Registry().Names()
		sort.Strings(names)
		fmt.Fprintln(s.out, strings.Join(append(names, "SAVE", "LOAD", "BGREWRITEAOF", "QUIT"), " "))
		return false
	case "SAVE":
		info, err := s.db.Save(ctx)
		s.printStatus(fmt.Sprintf("OK %s", info.Name), err)
		return false
	case "LOAD":
		info, err := s.db.Load(ctx)
		if errors.Is(err, persistence.ErrNoSnapshot) {
			fmt.Fprintln(s.out, "(error) ERR no snapshot to load")
			return false
		}
		s.printStatus(fmt.Sprintf("OK %s", info.Name), err)
		return false
	case "BGREWRITEAOF", "REWRITEAOF":
		s.printStatus("OK", s.db.RewriteAOF(ctx))
		return false
	}

	reply, err := s.db.Exec(ctx, args...)
	if err != nil {
		fmt.Fprintf(s.out, "(error) %s\n", errorText(err))
		return false
	}
	fmt.Fprintln(s.out, reply.String())
	return false
}

func (s *shell) printStatus(ok string, err error) {
	if err != nil {
		fmt.Fprintf(s.out, "(error) ERR %v\n", err)
		return
	}
	fmt.Fprintln(s.out, ok)
}

// errorText returns the Redis-style error reply of a command error.
func errorText(err error) string {
	var cerr *reroaring.CommandError
	if errors.As(err, &cerr) || errors.Is(err, reroaring.ErrPersistence) {
		return err.Error()
	}
	return "ERR " + err.Error()
}

// splitArgs splits a line the way redis-cli does: on spaces, with double
// quotes supporting backslash escapes and single quotes taken literally.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   byte
		escaped bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			switch c {
			case 'n':
				cur.WriteByte('\n')
			case 't':
				cur.WriteByte('\t')
			case 'r':
				cur.WriteByte('\r')
			default:
				cur.WriteByte(c)
			}
			escaped = false
		case quote == '"' && c == '\\':
			escaped = true
		case quote != 0 && c == quote:
			quote = 0
			if i+1 < len(line) && line[i+1] != ' ' && line[i+1] != '\t' {
				return nil, errors.New("closing quote must be followed by a space")
			}
		case quote != 0:
			cur.WriteByte(c)
		case c == '"' || c == '\'':
			quote = c
			inArg = true
		case c == ' ' || c == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteByte(c)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unbalanced quotes")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
