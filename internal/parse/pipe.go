package parse

import (
	"bufio"
	"bytes"
	"strings"
)

// record is one pipe-delimited data row mapped to internal column names.
type record map[string]string

// readPipeDelimited parses header-mapped pipe-delimited content. columnMap
// translates the file's header labels into internal names; columns absent
// from the map are ignored, and rows shorter than the header leave the
// missing columns empty. The callback returning false stops iteration.
func readPipeDelimited(content []byte, columnMap map[string]string, fn func(record) bool) error {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		return ErrEmptyFile
	}

	header := strings.Split(scanner.Text(), "|")
	indices := make(map[string]int, len(columnMap))
	for i, label := range header {
		if name, ok := columnMap[strings.TrimSpace(label)]; ok {
			indices[name] = i
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		values := strings.Split(line, "|")
		row := make(record, len(indices))
		for name, i := range indices {
			if i < len(values) {
				row[name] = strings.TrimSpace(values[i])
			}
		}
		if !fn(row) {
			break
		}
	}
	return scanner.Err()
}
