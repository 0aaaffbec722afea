package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// promptTemplate is one embedded prompt. The body is a text/template rendered
// with the prompt arguments plus "active", the last document the client
// highlighted or opened.
type promptTemplate struct {
	Name        string
	Description string           `yaml:"description"`
	Arguments   []promptArgument `yaml:"arguments"`
	body        *template.Template
}

type promptArgument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// loadPrompts reads every prompts/*.md file in name order.
func loadPrompts() ([]*promptTemplate, error) {
	entries, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, err
	}
	var prompts []*promptTemplate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := promptFiles.ReadFile("prompts/" + entry.Name())
		if err != nil {
			return nil, err
		}
		p, err := parsePrompt(strings.TrimSuffix(entry.Name(), ".md"), content)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", entry.Name(), err)
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}

// parsePrompt splits the YAML frontmatter from the template body.
func parsePrompt(name string, content []byte) (*promptTemplate, error) {
	p := &promptTemplate{Name: name}
	body := content
	if rest, ok := bytes.CutPrefix(content, []byte("---\n")); ok {
		end := bytes.Index(rest, []byte("\n---\n"))
		if end < 0 {
			return nil, fmt.Errorf("unterminated frontmatter")
		}
		if err := yaml.Unmarshal(rest[:end], p); err != nil {
			return nil, err
		}
		body = bytes.TrimPrefix(rest[end+5:], []byte("\n"))
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(string(body))
	if err != nil {
		return nil, err
	}
	p.body = tmpl
	return p, nil
}

func (p *promptTemplate) mcpPrompt() *mcp.Prompt {
	args := make([]*mcp.PromptArgument, 0, len(p.Arguments))
	for _, a := range p.Arguments {
		args = append(args, &mcp.PromptArgument{Name: a.Name, Description: a.Description, Required: a.Required})
	}
	return &mcp.Prompt{Name: p.Name, Description: p.Description, Arguments: args}
}

// render fills the body. Missing required arguments are an error.
func (p *promptTemplate) render(args map[string]string, active string) (string, error) {
	data := map[string]string{"active": active}
	for _, a := range p.Arguments {
		v := strings.TrimSpace(args[a.Name])
		if v == "" && a.Required {
			return "", fmt.Errorf("missing required argument %q", a.Name)
		}
		data[a.Name] = v
	}
	var buf bytes.Buffer
	if err := p.body.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// registerPrompts adds the embedded prompts. A broken prompt file is
// logged and skipped.
func (s *Server) registerPrompts() {
	prompts, err := loadPrompts()
	if err != nil {
		s.logger.Warn("prompts unavailable", "error", err)
		return
	}
	for _, p := range prompts {
		s.server.AddPrompt(p.mcpPrompt(), s.promptHandler(p))
	}
}

func (s *Server) promptHandler(p *promptTemplate) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		text, err := p.render(args, s.state.ActiveDocument())
		if err != nil {
			return nil, err
		}
		return &mcp.GetPromptResult{
			Description: p.Description,
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: text}},
			},
		}, nil
	}
}
