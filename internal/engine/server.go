package engine

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
)

// MCPServer собирает MCP-сервер домена: ресурсы, шаблон записи, инструменты и промпты.
func (g *Gateway) MCPServer() *server.MCPServer {
	d := g.Domain
	s := server.NewMCPServer(d.ServerName, d.ServerVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithInstructions(d.Instructions),
		server.WithRecovery(),
	)

	for _, res := range g.Resolver.Resources() {
		s.AddResource(mcp.NewResource(res.URI, res.Name,
			mcp.WithResourceDescription(res.Description),
			mcp.WithMIMEType(MIMEType),
		), g.readResource)
	}

	tpl := g.Resolver.Template()
	s.AddResourceTemplate(mcp.NewResourceTemplate(tpl.URI, tpl.Name,
		mcp.WithTemplateDescription(tpl.Description),
		mcp.WithTemplateMIMEType(MIMEType),
	), g.readResource)

	for _, t := range d.Tools {
		s.AddTool(t.MCP(), g.callTool)
	}

	for _, p := range d.Prompts {
		s.AddPrompt(p.MCP(), g.getPrompt(p))
	}
	return s
}

func (g *Gateway) readResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	doc, err := g.Resolver.Resolve(ctx, req.Params.URI)
	if err != nil {
		return nil, err
	}
	out := make([]mcp.ResourceContents, 0, len(doc.Contents))
	for _, c := range doc.Contents {
		out = append(out, mcp.TextResourceContents{URI: c.URI, MIMEType: c.MIMEType, Text: c.Text})
	}
	return out, nil
}

func (g *Gateway) callTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env, err := g.Dispatcher.Dispatch(ctx, req.Params.Name, req.GetArguments())
	if err != nil {
		return nil, err
	}

	text, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, "encode %s result: %v", req.Params.Name, err)
	}
	res := mcp.NewToolResultText(string(text))
	res.IsError = !env.Success
	return res, nil
}

func (g *Gateway) getPrompt(p Prompt) func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		text, err := g.RenderPrompt(ctx, p.Name, req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		return mcp.NewGetPromptResult(p.Description, []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		}), nil
	}
}

// RenderPrompt проверяет обязательные аргументы и рендерит промпт.
func (g *Gateway) RenderPrompt(ctx context.Context, name string, args map[string]string) (string, error) {
	for _, p := range g.Domain.Prompts {
		if p.Name != name {
			continue
		}
		for _, a := range p.Arguments {
			if a.Required && args[a.Name] == "" {
				return "", domain.Validation("prompt %s: argument %q is required", name, a.Name)
			}
		}
		rt := &Runtime{Domain: g.Domain, Store: g.Resolver.store, Now: g.Resolver.clock(), Logger: g.logger}
		return p.Render(ctx, rt, args)
	}
	return "", domain.NewError(domain.KindUnknownOperation, "unknown prompt: %s", name)
}

// MCP: дескриптор промпта для протокола.
func (p Prompt) MCP() mcp.Prompt {
	opts := []mcp.PromptOption{mcp.WithPromptDescription(p.Description)}
	for _, a := range p.Arguments {
		argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(a.Description)}
		if a.Required {
			argOpts = append(argOpts, mcp.RequiredArgument())
		}
		opts = append(opts, mcp.WithArgument(a.Name, argOpts...))
	}
	return mcp.NewPrompt(p.Name, opts...)
}
