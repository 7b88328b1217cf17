package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

var exitKeywords = map[string]bool{"exit": true, "quit": true}

// IsExit reports whether input is an exit keyword, ignoring case and
// surrounding space.
func IsExit(input string) bool {
	return exitKeywords[strings.ToLower(strings.TrimSpace(input))]
}

// TurnHandler answers one user turn. *Session implements it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, text string) (string, error)
}

// LineReader reads one line of user input after showing prompt. It
// returns io.EOF when input is exhausted.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Driver reads turns until an exit keyword or the end of input.
type Driver struct {
	Handler TurnHandler
	Input   LineReader
	Out     io.Writer
	// Label is shown as the input prompt, e.g. "Patient".
	Label string
}

// Run drives the conversation. It only returns an error when reading input
// fails; turn errors are printed and the loop continues. Cancelling ctx
// ends the session before the next prompt; a turn already in progress
// runs to completion under its own timeouts.
func (d *Driver) Run(ctx context.Context) error {
	fmt.Fprintf(d.Out, "%s Chat Session. Type 'exit' to end the conversation.\n\n", d.Label)
	defer d.summary()

	for {
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(d.Out, "Exiting chat.")
			return nil
		}

		line, err := d.Input.ReadLine(d.Label + ": ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(d.Out, "Exiting chat.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if IsExit(text) {
			fmt.Fprintln(d.Out, "Exiting chat.")
			return nil
		}

		reply, err := d.Handler.HandleTurn(context.WithoutCancel(ctx), text)
		if err != nil {
			fmt.Fprintf(d.Out, "Error: %v\n\n", err)
			continue
		}
		fmt.Fprintf(d.Out, "Assistant: %s\n\n", reply)
	}
}

func (d *Driver) summary() {
	if u, ok := d.Handler.(interface{ Usage() Usage }); ok {
		if usage := u.Usage(); usage.Turns > 0 {
			fmt.Fprintf(d.Out, "Session usage: %s\n", usage)
		}
	}
}

// ScanReader reads lines from any io.Reader and writes the prompt to out.
type ScanReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

// NewScanReader creates a ScanReader.
func NewScanReader(in io.Reader, out io.Writer) *ScanReader {
	return &ScanReader{sc: bufio.NewScanner(in), out: out}
}

func (r *ScanReader) ReadLine(prompt string) (string, error) {
	if r.out != nil {
		fmt.Fprint(r.out, prompt)
	}
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

// PromptReader reads lines with an interactive terminal prompt.
type PromptReader struct{}

func (PromptReader) ReadLine(prompt string) (string, error) {
	p := promptui.Prompt{
		Label: strings.TrimSuffix(strings.TrimSpace(prompt), ":"),
	}
	line, err := p.Run()
	if errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}
