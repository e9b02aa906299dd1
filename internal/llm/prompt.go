package llm

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/testmend/testmend/internal/fixer"
)

//go:embed fix_template.tmpl
var defaultFixTemplate string

// maxFileBytes is the maximum byte size of test file content included in a
// fix prompt. Larger files are truncated with a notice.
const maxFileBytes = 100 * 1024 // 100KB

// promptData holds the data needed to render a fix prompt.
type promptData struct {
	TestFile     string
	TestFunction string
	ErrorType    string
	Message      string
	StackTrace   string
	FileContent  string
}

// PromptBuilder renders fix prompts from failing test cases. The template
// uses [[ ]] delimiters so that braces in Python code pass through
// untouched.
type PromptBuilder struct {
	tmpl *template.Template
}

// NewPromptBuilder creates a PromptBuilder over the built-in template.
func NewPromptBuilder() *PromptBuilder {
	tmpl := template.Must(
		template.New("fix").
			Delims("[[", "]]").
			Parse(defaultFixTemplate),
	)
	return &PromptBuilder{tmpl: tmpl}
}

// Build constructs the fix prompt for tc. fileContent is the current content
// of the failing test file and may be empty when it could not be read; it is
// truncated to maxFileBytes.
func (pb *PromptBuilder) Build(tc *fixer.TestCase, fileContent string) (string, error) {
	if len(fileContent) > maxFileBytes {
		fileContent = fileContent[:maxFileBytes] + "\n... [file truncated at 100KB] ..."
	}

	data := promptData{
		TestFile:     tc.TestFile,
		TestFunction: tc.TestFunction,
		ErrorType:    tc.Details.ErrorType,
		Message:      tc.Details.Message,
		StackTrace:   tc.Details.StackTrace,
		FileContent:  fileContent,
	}

	var buf bytes.Buffer
	if err := pb.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("llm: executing fix prompt template: %w", err)
	}
	return buf.String(), nil
}
