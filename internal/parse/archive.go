package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// extractArchive returns the text content of the first data member of a ZIP
// archive, or the input unchanged when it is not an archive. A ZIP that fails
// to open or holds no data member is a content error.
func extractArchive(filename string, raw []byte) ([]byte, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".zip") {
		return raw, nil
	}

	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, &ContentError{Filename: filename, Err: fmt.Errorf("%w: %v", ErrCorruptArchive, err)}
	}

	for _, member := range reader.File {
		name := strings.ToLower(member.Name)
		if !strings.HasSuffix(name, ".txt") && !strings.HasSuffix(name, ".fac") {
			continue
		}
		f, err := member.Open()
		if err != nil {
			return nil, &ContentError{Filename: filename, Err: fmt.Errorf("%w: open %s: %v", ErrCorruptArchive, member.Name, err)}
		}
		defer f.Close()

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, &ContentError{Filename: filename, Err: fmt.Errorf("%w: read %s: %v", ErrCorruptArchive, member.Name, err)}
		}
		return content, nil
	}

	return nil, &ContentError{Filename: filename, Err: fmt.Errorf("%w: no data member", ErrCorruptArchive)}
}
