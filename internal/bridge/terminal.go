package bridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// RunTerminal drives b from a line-oriented terminal. Each non-empty line read
// from in is sent; inbound messages are printed to out as they arrive. It
// returns when in is exhausted, the user types quit or exit, ctx is canceled,
// or the bridge is closed.
func RunTerminal(ctx context.Context, b *Bridge, in io.Reader, out io.Writer) error {
	var outMu sync.Mutex
	printf := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(stop)
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case text := <-b.Inbound():
				printf("[server]: %s\n", text)
			case <-stop:
				return
			case <-b.Done():
				return
			}
		}
	}()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	printf("Type your messages (or 'quit' to exit):\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.Done():
			return nil
		case err := <-scanErr:
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		case line := <-lines:
			text := strings.TrimSpace(line)
			if text == "quit" || text == "exit" {
				return nil
			}
			if text == "" {
				continue
			}
			if err := b.Send(line); err != nil {
				printf("! message not sent: %v\n", err)
			}
		}
	}
}
