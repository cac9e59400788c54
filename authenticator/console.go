// Package authenticator answers steam guard challenges during a password login.
package authenticator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/escrow-tf/trackmmr"
	"github.com/rotisserie/eris"
)

// Console prompts on out and reads answers a line at a time from in. It is not safe for
// concurrent use.
type Console struct {
	in      *bufio.Reader
	out     io.Writer
	lines   chan line
	reading bool
}

type line struct {
	text string
	err  error
}

var _ trackmmr.Authenticator = (*Console)(nil)

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out, lines: make(chan line, 1)}
}

func (c *Console) GetDeviceCode(ctx context.Context, previousCodeWasIncorrect bool) (string, error) {
	prompt := "Steam Guard code from your mobile authenticator: "
	if previousCodeWasIncorrect {
		prompt = "That code was incorrect. " + prompt
	}
	return c.Ask(ctx, prompt)
}

func (c *Console) GetEmailCode(ctx context.Context, email string, previousCodeWasIncorrect bool) (string, error) {
	prompt := "Steam Guard code sent to your email: "
	if email != "" {
		prompt = fmt.Sprintf("Steam Guard code sent to %s: ", email)
	}
	if previousCodeWasIncorrect {
		prompt = "That code was incorrect. " + prompt
	}
	return c.Ask(ctx, prompt)
}

func (c *Console) AcceptDeviceConfirmation(ctx context.Context) (bool, error) {
	answer, err := c.Ask(ctx, "Approve the login in the Steam mobile app instead of entering a code? [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Ask writes prompt and returns the next line of input, trimmed. It gives up when ctx is done;
// a line typed after that is kept for the next Ask.
func (c *Console) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := io.WriteString(c.out, prompt); err != nil {
		return "", eris.Wrap(err, "couldn't write prompt")
	}

	if !c.reading {
		c.reading = true
		go c.readLine()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case answer := <-c.lines:
		c.reading = false
		if answer.err != nil {
			return "", eris.Wrap(answer.err, "couldn't read answer")
		}
		return strings.TrimSpace(answer.text), nil
	}
}

func (c *Console) readLine() {
	text, err := c.in.ReadString('\n')
	if err == io.EOF && text != "" {
		err = nil
	}
	c.lines <- line{text: text, err: err}
}
