package serialmux

import (
	"bufio"
	"bytes"
	"io"
	"time"
)

// ReplayPort serves recorded fixture lines at a fixed interval, simulating
// a live acquisition device for development without hardware.
type ReplayPort struct {
	io.ReadCloser
}

// NewReplayPort creates a port that emits each line of data every interval
// and returns EOF once the fixture is exhausted.
func NewReplayPort(data []byte, interval time.Duration) *ReplayPort {
	r, w := io.Pipe()

	go func() {
		defer w.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		scan := bufio.NewScanner(bytes.NewReader(data))
		for scan.Scan() {
			<-ticker.C
			if _, err := w.Write(append(scan.Bytes(), '\n')); err != nil {
				return
			}
		}
	}()

	return &ReplayPort{ReadCloser: r}
}
