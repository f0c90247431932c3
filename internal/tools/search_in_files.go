package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"babylon/internal/toolkit"
)

type searchInFiles struct{}

// NewSearchInFiles returns the search_in_files tool.
func NewSearchInFiles() toolkit.ToolExecutor { return &searchInFiles{} }

func (t *searchInFiles) Definition() toolkit.ToolDefinition {
	return toolkit.ToolDefinition{
		Name:        "search_in_files",
		Description: "Search for a regular expression across files under a path, optionally filtered by a glob.",
		Parameters: toolkit.ParameterSchema{
			Type: "object",
			Properties: map[string]toolkit.Property{
				"pattern":    {Type: "string", Description: "Regular expression to search for"},
				"path":       {Type: "string", Description: "Directory to search, default '.'"},
				"glob":       {Type: "string", Description: "Filename glob, e.g. *.go"},
				"maxResults": {Type: "integer", Description: "Maximum matches to return, default 150, max 500"},
			},
			Required: []string{"pattern"},
		},
	}
}

const (
	searchMaxFilesVisited = 300
)

func (t *searchInFiles) Execute(ctx context.Context, tc toolkit.ToolContext, call toolkit.ToolCall) (*toolkit.ToolResult, error) {
	pattern, _ := call.Arguments["pattern"].(string)
	if pattern == "" {
		return toolkit.ErrorResult("missing required argument 'pattern'"), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(pattern))
	}

	path, _ := call.Arguments["path"].(string)
	if path == "" {
		path = "."
	}
	globStr, _ := call.Arguments["glob"].(string)
	var globRe *regexp.Regexp
	if globStr != "" {
		globRe = regexp.MustCompile("^" + translateGlob(globStr) + "$")
	}

	maxResults, ok := intArg(call.Arguments["maxResults"])
	if !ok || maxResults <= 0 {
		maxResults = 150
	}
	if maxResults > 500 {
		maxResults = 500
	}

	root, err := toolkit.ResolvePath(tc.WorkingDir, path)
	if err != nil {
		return toolkit.ErrorResult("%s: %v", path, err), nil
	}

	var matches []string
	visited := 0
	err = filepath.Walk(root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if len(matches) >= maxResults || visited >= searchMaxFilesVisited {
			return filepath.SkipAll
		}
		if info.IsDir() {
			if listDirectorySkip[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if globRe != nil && !globRe.MatchString(info.Name()) {
			return nil
		}
		visited++
		rel, relErr := filepath.Rel(tc.WorkingDir, p)
		if relErr != nil {
			rel = p
		}
		rel = filepath.ToSlash(rel)

		grepFile(p, rel, re, maxResults, &matches)
		return nil
	})
	if err != nil {
		return toolkit.ErrorResult("search failed: %v", err), nil
	}

	if len(matches) == 0 {
		return &toolkit.ToolResult{Content: "no matches"}, nil
	}
	return &toolkit.ToolResult{Content: toolkit.Truncate(strings.Join(matches, "\n"), toolkit.CapSearchOutput)}, nil
}

func grepFile(abs, rel string, re *regexp.Regexp, maxResults int, matches *[]string) {
	f, err := os.Open(abs)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(*matches) >= maxResults {
			return
		}
		line := scanner.Text()
		if re.MatchString(line) {
			*matches = append(*matches, fmt.Sprintf("%s:%d:%s", rel, lineNo, line))
		}
	}
}

func translateGlob(glob string) string {
	var b strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.':
			b.WriteString(`\.`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
