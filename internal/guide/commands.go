package guide

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML metadata block a command template may carry,
// parsed from between the leading and trailing "---" delimiters.
type Frontmatter struct {
	RequiredArgs   []string          `yaml:"required_args"`
	RequiredKwargs []string          `yaml:"required_kwargs"`
	Instruction    string            `yaml:"instruction"`
	Aliases        []string          `yaml:"aliases"`
	Requires       map[string]string `yaml:"requires"`
}

// Command is a discovered, parsed command template: its frontmatter plus
// the parsed body template, ready to render against a context chain.
type Command struct {
	Name        string
	Path        string
	Frontmatter Frontmatter
	body        *template.Template
}

// commandExtensions mirrors the candidate extensions render.Renderer
// tries, so command files can live alongside ordinary content templates.
var commandExtensions = []string{".md", ".md.tmpl", ".tmpl"}

// DiscoverCommand locates the command file for name under
// docroot/commands, resolving it either directly or via an alias declared
// in another command's frontmatter. Returns an error if no matching file
// is found or parsing fails.
func DiscoverCommand(docroot, name string) (*Command, error) {
	commandsDir := filepath.Join(docroot, "commands")

	if cmd, err := loadCommand(commandsDir, name); err == nil {
		return cmd, nil
	}

	entries, err := os.ReadDir(commandsDir)
	if err != nil {
		return nil, fmt.Errorf("guide: commands directory not found: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		candidateName := stripCommandExtension(entry.Name())
		cmd, err := loadCommand(commandsDir, candidateName)
		if err != nil {
			continue
		}
		for _, alias := range cmd.Frontmatter.Aliases {
			if alias == name {
				return cmd, nil
			}
		}
	}

	return nil, fmt.Errorf("guide: no command named %q found under %s", name, commandsDir)
}

func stripCommandExtension(filename string) string {
	for _, ext := range commandExtensions {
		if strings.HasSuffix(filename, ext) {
			return strings.TrimSuffix(filename, ext)
		}
	}
	return filename
}

func loadCommand(commandsDir, name string) (*Command, error) {
	var data []byte
	var path string
	var readErr error

	for _, ext := range commandExtensions {
		p := filepath.Join(commandsDir, name+ext)
		data, readErr = os.ReadFile(p)
		if readErr == nil {
			path = p
			break
		}
	}
	if readErr != nil {
		return nil, readErr
	}

	front, body := splitFrontmatter(data)

	fm := Frontmatter{}
	if front != "" {
		if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
			return nil, fmt.Errorf("guide: parse frontmatter for %q: %w", name, err)
		}
	}

	tmpl, err := template.New(name).Parse(body)
	if err != nil {
		return nil, fmt.Errorf("guide: parse command template %q: %w", name, err)
	}

	return &Command{Name: name, Path: path, Frontmatter: fm, body: tmpl}, nil
}

// splitFrontmatter separates a leading "---\n...\n---\n" YAML block from
// the remaining template body. A file with no such block is treated as
// pure body with empty frontmatter.
func splitFrontmatter(data []byte) (frontmatter, body string) {
	text := string(data)
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return "", text
	}

	rest := strings.TrimPrefix(strings.TrimPrefix(text, "---\r\n"), "---\n")
	idx := strings.Index(rest, "\n---\n")
	if idx < 0 {
		idx = strings.Index(rest, "\n---\r\n")
		if idx < 0 {
			return "", text
		}
	}

	closing := "\n---\n"
	end := strings.Index(rest, closing)
	if end < 0 {
		closing = "\n---\r\n"
		end = strings.Index(rest, closing)
	}
	return rest[:end], rest[end+len(closing):]
}

// Render executes the command's body template against ctx.
func (c *Command) Render(ctx map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := c.body.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("guide: render command %q: %w", c.Name, err)
	}
	return buf.String(), nil
}

// MissingRequired reports which of the frontmatter's required_args and
// required_kwargs are absent from positional/kwargs.
func (c *Command) MissingRequired(positional []string, kwargs map[string]string) []string {
	var missing []string
	if len(c.Frontmatter.RequiredArgs) > len(positional) {
		for _, name := range c.Frontmatter.RequiredArgs[len(positional):] {
			missing = append(missing, name)
		}
	}
	for _, name := range c.Frontmatter.RequiredKwargs {
		if _, ok := kwargs[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
