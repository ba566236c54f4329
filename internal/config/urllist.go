package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadURLList reads a resume file with one URL per line. Blank lines and
// lines starting with '#' are skipped, and only the first comma-separated
// column is kept so CSV exports of a queue, header row included, can be fed
// back in.
func LoadURLList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open url list: %w", err)
	}
	defer f.Close() //nolint:errcheck

	urls, err := ReadURLList(f)
	if err != nil {
		return nil, fmt.Errorf("read url list %s: %w", path, err)
	}
	return urls, nil
}

// ReadURLList is LoadURLList over an io.Reader.
func ReadURLList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, ','); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		line = strings.Trim(line, `"`)
		if line != "" && !strings.EqualFold(line, "url") {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}
