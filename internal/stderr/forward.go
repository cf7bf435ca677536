package stderr

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
)

// forward logs every non-empty line read from r until r is closed.
func forward(r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Warn("native library output", "line", line)
	}
}
