package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFile replaces the value of one key in a dotenv-style file. Every other
// byte of the file, line endings and comments included, is left untouched.
type EnvFile struct {
	Path string
	Key  string
}

func NewEnvFile(path, key string) *EnvFile {
	return &EnvFile{Path: path, Key: key}
}

func (e *EnvFile) String() string {
	return fmt.Sprintf("%s (%s)", e.Path, e.Key)
}

func (e *EnvFile) Publish(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(e.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s does not exist: %w", e.Path, ErrKeyNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	raw, err := os.ReadFile(e.Path)
	if err != nil {
		return fmt.Errorf("failed to read env file: %w", err)
	}

	out, found := ReplaceValue(raw, e.Key, url)
	if !found {
		return fmt.Errorf("%s has no %s entry: %w", e.Path, e.Key, ErrKeyNotFound)
	}
	if bytes.Equal(out, raw) {
		return nil
	}
	if err := os.WriteFile(e.Path, out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}

	values, err := godotenv.Read(e.Path)
	if err != nil {
		return fmt.Errorf("failed to re-read env file: %w", err)
	}
	if got := values[e.Key]; got != url {
		return fmt.Errorf("env file verification failed: %s is %q, want %q", e.Key, got, url)
	}
	return nil
}

// ReplaceValue rewrites the value of the first line assigning key, keeping
// an optional export prefix, the quoting style and any inline comment. It
// reports whether such a line exists.
func ReplaceValue(content []byte, key, value string) ([]byte, bool) {
	lines := bytes.SplitAfter(content, []byte("\n"))
	for i, line := range lines {
		body, eol := splitEOL(string(line))
		prefix, old, ok := matchKey(body, key)
		if !ok {
			continue
		}
		lines[i] = []byte(prefix + rewriteValue(old, value) + eol)
		return bytes.Join(lines, nil), true
	}
	return content, false
}

func splitEOL(line string) (body, eol string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

// matchKey splits "  export KEY = value" into the part up to and including
// the '=' (plus following blanks) and the value.
func matchKey(line, key string) (prefix, value string, ok bool) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return "", "", false
	}
	name := strings.TrimSpace(line[:eq])
	name = strings.TrimSpace(strings.TrimPrefix(name, "export "))
	if name != key {
		return "", "", false
	}
	rest := line[eq+1:]
	trimmed := strings.TrimLeft(rest, " \t")
	return line[:eq+1] + rest[:len(rest)-len(trimmed)], trimmed, true
}

func rewriteValue(old, value string) string {
	if old != "" && (old[0] == '"' || old[0] == '\'') {
		q := old[0]
		if end := strings.IndexByte(old[1:], q); end >= 0 {
			return string(q) + value + string(q) + old[end+2:]
		}
	}
	if idx := strings.Index(old, " #"); idx >= 0 {
		return value + old[idx:]
	}
	return value
}
