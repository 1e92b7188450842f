package workload

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const nanosPerMicro = 1000

// ParseStopwatch reads a stopwatch log: one integer duration in
// microseconds per line. Blank lines are skipped. The result is in
// nanoseconds, the unit of traceml timestamps.
func ParseStopwatch(path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stopwatch log %s: %w", path, err)
	}
	samples, err := parseStopwatch(data)
	if err != nil {
		return nil, fmt.Errorf("parse stopwatch log %s: %w", path, err)
	}
	return samples, nil
}

func parseStopwatch(data []byte) ([]int64, error) {
	var samples []int64
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, v*nanosPerMicro)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
