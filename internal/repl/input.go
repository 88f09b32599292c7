package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Input reads lines from a single reader (normally stdin) and routes
// them either to the REPL loop or to a pending Ask. Sharing one reader
// keeps interactive confirmation prompts from racing the command loop.
type Input struct {
	out   io.Writer
	lines chan string

	mu   sync.Mutex
	ask  chan string
	done bool
}

func NewInput(r io.Reader, out io.Writer) *Input {
	in := &Input{out: out, lines: make(chan string)}
	go in.loop(r)
	return in
}

// Lines yields command lines. The channel closes when the reader ends.
func (in *Input) Lines() <-chan string { return in.lines }

// Ask prints a yes/no prompt and consumes the next input line as the
// answer. Returns false if the reader has ended.
func (in *Input) Ask(prompt string) bool {
	reply := make(chan string, 1)
	in.mu.Lock()
	if in.done {
		in.mu.Unlock()
		return false
	}
	in.ask = reply
	in.mu.Unlock()

	fmt.Fprintf(in.out, "%s [y/N]: ", prompt)

	ans := strings.ToLower(<-reply)
	return ans == "y" || ans == "yes"
}

func (in *Input) loop(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		in.mu.Lock()
		ask := in.ask
		in.ask = nil
		in.mu.Unlock()

		if ask != nil {
			ask <- line
			continue
		}
		in.lines <- line
	}

	// Unblock a pending Ask before closing down.
	in.mu.Lock()
	in.done = true
	if in.ask != nil {
		in.ask <- ""
		in.ask = nil
	}
	in.mu.Unlock()
	close(in.lines)
}
