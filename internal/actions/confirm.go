package actions

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeterchen1226/fastapi-trello/internal/notify"
)

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, text string) (bool, error)
}

// SlotConfirmer shows the question as a prompt on the alert slot and waits
// for it to be dismissed.
type SlotConfirmer struct {
	Slot *notify.Slot
}

func (c SlotConfirmer) Confirm(ctx context.Context, text string) (bool, error) {
	answer := make(chan bool, 1)
	a := notify.ConfirmAlert(notify.TitleConfirm, text, func() { answer <- true })
	a.Cancel = func() { answer <- false }
	c.Slot.Show(a)

	select {
	case ok := <-answer:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// StaticConfirmer answers every question the same way (--yes).
type StaticConfirmer bool

func (c StaticConfirmer) Confirm(context.Context, string) (bool, error) {
	return bool(c), nil
}

// PromptConfirmer asks on a terminal and accepts y or yes.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (c PromptConfirmer) Confirm(_ context.Context, text string) (bool, error) {
	fmt.Fprintf(c.Out, "%s [%s/%s] (y/N): ", text, notify.ButtonConfirm, notify.ButtonCancel)
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", notify.ButtonConfirm:
		return true, nil
	}
	return false, nil
}
