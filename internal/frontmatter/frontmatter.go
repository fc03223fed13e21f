// Package frontmatter reads and writes the metadata header of memory files.
//
// The read path is deliberately permissive: a malformed or unterminated
// header never fails, the whole input is treated as body. The write path is
// strict instead, emitting a canonical header so rendering is deterministic.
package frontmatter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Meta holds the recognized header keys. Pointer fields distinguish an
// absent key from a zero value, which matters for update-mode resolution:
// keys absent from the file header are never sent to the remote store.
type Meta struct {
	Description *string `yaml:"description"`
	Limit       *int    `yaml:"limit"`
	ReadOnly    *bool   `yaml:"read_only"`
}

// File is a parsed memory file: header metadata plus raw body.
type File struct {
	Meta Meta
	Body string
}

// Parse splits content into header metadata and body. It never returns an
// error: if the header block is missing, unterminated, or not valid YAML,
// the entire input becomes the body and the metadata is empty.
func Parse(content string) File {
	if !strings.HasPrefix(content, delimiter+"\n") {
		return File{Body: content}
	}
	rest := content[len(delimiter)+1:]

	var header, body string
	if strings.HasPrefix(rest, delimiter) {
		// Empty header: the closing delimiter follows immediately.
		body = rest[len(delimiter):]
	} else {
		idx := strings.Index(rest, "\n"+delimiter)
		if idx == -1 {
			return File{Body: content}
		}
		header = rest[:idx]
		body = rest[idx+len("\n"+delimiter):]
	}
	// The closing delimiter must end its line.
	if body != "" && !strings.HasPrefix(body, "\n") {
		return File{Body: content}
	}
	if strings.HasPrefix(body, "\n\n") {
		body = body[2:]
	} else if strings.HasPrefix(body, "\n") {
		body = body[1:]
	}

	var meta Meta
	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return File{Body: content}
	}
	return File{Meta: meta, Body: body}
}

// Render produces the on-disk representation of a memory file. Header keys
// are emitted in a fixed order (description, limit, read_only) and only when
// present, so rendering the same input always yields identical bytes. With
// no keys at all the header block is omitted entirely, keeping the rendered
// body byte-identical to the source value.
func Render(meta Meta, body string) string {
	if meta.Description == nil && meta.Limit == nil && meta.ReadOnly == nil {
		return body
	}

	var sb strings.Builder
	sb.WriteString(delimiter + "\n")
	if meta.Description != nil {
		sb.WriteString(fmt.Sprintf("description: %q\n", *meta.Description))
	}
	if meta.Limit != nil {
		sb.WriteString(fmt.Sprintf("limit: %d\n", *meta.Limit))
	}
	if meta.ReadOnly != nil {
		sb.WriteString(fmt.Sprintf("read_only: %t\n", *meta.ReadOnly))
	}
	sb.WriteString(delimiter + "\n\n")
	sb.WriteString(body)
	return sb.String()
}

// HashContent returns the hex sha-256 digest of s.
func HashContent(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashWhole hashes the full file text, header included. Used to detect any
// local edit, metadata-only edits included.
func HashWhole(content string) string {
	return HashContent(content)
}

// HashBody hashes only the body of content, so a file can be compared
// against a block value while ignoring metadata-only differences.
func HashBody(content string) string {
	return HashContent(Parse(content).Body)
}
