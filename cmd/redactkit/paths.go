package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/redactkit/stream"
)

// defaultOutput is where redacted files land when -o is not given.
const defaultOutput = "output/"

// inputFile is one document to process. BaseDir is set for documents found
// by walking a directory argument, so their relative layout can be mirrored
// under the output directory.
type inputFile struct {
	Path    string
	BaseDir string
}

// collectInputs expands the positional arguments into concrete PDF paths.
// Glob patterns and plain files contribute flat entries; directory arguments
// are walked recursively and remember their base for output layout. Non-PDF
// arguments are returned in skipped rather than silently dropped.
func collectInputs(args []string) (inputs []inputFile, skipped []string) {
	for _, arg := range args {
		switch {
		case strings.ContainsAny(arg, "*?["):
			matches, err := filepath.Glob(arg)
			if err != nil {
				skipped = append(skipped, arg)
				continue
			}
			for _, m := range matches {
				if isPDF(m) {
					inputs = append(inputs, inputFile{Path: m})
				}
			}
		case isDir(arg):
			filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
				if err == nil && !d.IsDir() && isPDF(path) {
					inputs = append(inputs, inputFile{Path: path, BaseDir: arg})
				}
				return nil
			})
		case isPDF(arg):
			inputs = append(inputs, inputFile{Path: arg})
		default:
			skipped = append(skipped, arg)
		}
	}
	return inputs, skipped
}

// resolveOutput maps an input path to its output path. A target ending in a
// path separator, or naming an existing directory, is treated as a
// directory; anything else is a file path, valid only for a single input.
func resolveOutput(in inputFile, target string) string {
	if target == "" {
		target = defaultOutput
	}
	if !isDirTarget(target) {
		return target
	}
	if in.BaseDir != "" {
		if rel, err := filepath.Rel(in.BaseDir, in.Path); err == nil {
			return filepath.Join(target, rel)
		}
	}
	return filepath.Join(target, filepath.Base(in.Path))
}

func isDirTarget(target string) bool {
	if target == "" {
		return false
	}
	return os.IsPathSeparator(target[len(target)-1]) || isDir(target)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// literalPattern turns -m text into a grammar source. The matcher runs
// against the normalized stream, which holds letters and digits only, so the
// text is filtered the same way first: punctuation and spaces in the
// operator's literal would otherwise make it unmatchable. The filtered text
// needs no escaping; nothing alphanumeric is special in the rule syntax.
func literalPattern(text string) string {
	return fmt.Sprintf(`match = ~"%s"i`, stream.NormalizeText(text))
}
