package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/output_storage"
)

func printStatusTable(w io.Writer, address string, running bool) {
	state := "Idle"
	if running {
		state = "Running"
	}

	addrW := maxInt(7, len(address))
	stateW := maxInt(7, len(state))

	sep := fmt.Sprintf("+-%s-+-%s-+\n", strings.Repeat("-", addrW), strings.Repeat("-", stateW))
	fmt.Fprint(w, sep)
	fmt.Fprintf(w, "| %s | %s |\n", pad("ADDRESS", addrW), pad("STATE", stateW))
	fmt.Fprint(w, sep)
	fmt.Fprintf(w, "| %s | %s |\n", pad(address, addrW), pad(state, stateW))
	fmt.Fprint(w, sep)
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

const clearScreen = "\x1b[H\x1b[2J"

// printOutput copies followed output to w until the storage stops or ctx is
// done. A clear is rendered as clearSeq.
func printOutput(ctx context.Context, chunks <-chan output_storage.Chunk, w io.Writer, clearSeq string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-chunks:
			if !ok {
				return nil
			}
			data := c.Data
			if c.Reset {
				if clearSeq == "" {
					continue
				}
				data = []byte(clearSeq)
			}
			if _, err := w.Write(data); err != nil {
				return err
			}
		}
	}
}

// copyOutput writes subscribed output to w until the storage stops. After a
// write error it keeps draining so the storage is never held up.
func copyOutput(chunks <-chan []byte, w io.Writer) error {
	var err error
	for data := range chunks {
		if err == nil {
			_, err = w.Write(data)
		}
	}
	return err
}
