package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPTransportKind selects how an MCPImplementation dials a given server.
type MCPTransportKind string

const (
	MCPTransportStdio MCPTransportKind = "stdio"
	MCPTransportHTTP  MCPTransportKind = "http"
	MCPTransportSSE   MCPTransportKind = "sse"
)

// MCPServerSpec is the connection recipe for one MCP server an agent may
// install into its sandbox.
type MCPServerSpec struct {
	Transport MCPTransportKind
	Command   string   // stdio
	Args      []string // stdio
	Endpoint  string   // http/sse
}

func (s MCPServerSpec) dial() (mcpsdk.Transport, error) {
	switch s.Transport {
	case MCPTransportStdio:
		if s.Command == "" {
			return nil, fmt.Errorf("stdio transport requires a command")
		}
		return &mcpsdk.CommandTransport{Command: exec.Command(s.Command, s.Args...)}, nil
	case MCPTransportHTTP:
		if s.Endpoint == "" {
			return nil, fmt.Errorf("http transport requires an endpoint")
		}
		return &mcpsdk.StreamableClientTransport{Endpoint: s.Endpoint}, nil
	case MCPTransportSSE:
		if s.Endpoint == "" {
			return nil, fmt.Errorf("sse transport requires an endpoint")
		}
		return &mcpsdk.SSEClientTransport{Endpoint: s.Endpoint}, nil
	default:
		return nil, fmt.Errorf("unsupported MCP transport %q", s.Transport)
	}
}

// ServerResolver looks up the connection recipe for a server id, e.g. from
// a registry shared across an agent's tool set.
type ServerResolver interface {
	Resolve(serverID string) (MCPServerSpec, error)
}

// MCPImplementation is a Sandbox Implementation whose MCP* methods connect
// to real MCP servers via the official SDK, with the same
// Connect/ListTools/CallTool shape trimmed to this package's narrower
// Result-returning contract. Exec/File/URL-minting
// methods are delegated to an embedded backend, since those concerns are
// orthogonal to the MCP tool surface.
type MCPImplementation struct {
	Implementation // embedded backend for Exec/File/URL methods

	resolver ServerResolver

	mu       sync.Mutex
	sessions map[string]*mcpsdk.ClientSession
	tools    map[string][]*mcpsdk.Tool
}

// NewMCPImplementation wraps backend (typically a MemoryImplementation, or
// a real container/VM backend) and adds a live MCP tool surface resolved
// through resolver.
func NewMCPImplementation(backend Implementation, resolver ServerResolver) *MCPImplementation {
	return &MCPImplementation{
		Implementation: backend,
		resolver:       resolver,
		sessions:       make(map[string]*mcpsdk.ClientSession),
		tools:          make(map[string][]*mcpsdk.Tool),
	}
}

func (m *MCPImplementation) connect(ctx context.Context, serverID string) (*mcpsdk.ClientSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[serverID]; ok {
		return session, nil
	}

	spec, err := m.resolver.Resolve(serverID)
	if err != nil {
		return nil, fmt.Errorf("resolve MCP server %q: %w", serverID, err)
	}
	transport, err := spec.dial()
	if err != nil {
		return nil, fmt.Errorf("dial MCP server %q: %w", serverID, err)
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "tarsy-agent-runtime", Version: "dev"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to MCP server %q: %w", serverID, err)
	}
	m.sessions[serverID] = session
	return session, nil
}

// MCPInstall connects to serverID and caches its tool list.
func (m *MCPImplementation) MCPInstall(ctx context.Context, serverID string) (Result, error) {
	session, err := m.connect(ctx, serverID)
	if err != nil {
		return Result{Success: false, Message: err.Error()}, nil
	}
	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("list tools on %q: %v", serverID, err)}, nil
	}
	m.mu.Lock()
	m.tools[serverID] = result.Tools
	m.mu.Unlock()
	return ok("installed", toolNames(result.Tools))
}

// MCPUninstall closes the session for serverID, if open.
func (m *MCPImplementation) MCPUninstall(ctx context.Context, serverID string) (Result, error) {
	m.mu.Lock()
	session, open := m.sessions[serverID]
	delete(m.sessions, serverID)
	delete(m.tools, serverID)
	m.mu.Unlock()

	if open {
		_ = session.Close()
	}
	return ok("uninstalled", nil)
}

// MCPList returns the ids of every server currently installed.
func (m *MCPImplementation) MCPList(context.Context) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.tools))
	for id := range m.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ok("listed", ids)
}

// MCPProxyRequest calls toolName on serverID with JSON-encoded argsJSON,
// decoding the result's text content into Result.Data.
func (m *MCPImplementation) MCPProxyRequest(ctx context.Context, serverID, toolName, argsJSON string) (Result, error) {
	session, err := m.connect(ctx, serverID)
	if err != nil {
		return Result{Success: false, Message: err.Error()}, nil
	}

	var args map[string]any
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return Result{Success: false, Message: fmt.Sprintf("invalid tool arguments: %v", err)}, nil
		}
	}

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("call %s on %q: %v", toolName, serverID, err)}, nil
	}
	if result.IsError {
		return Result{Success: false, Message: contentText(result), Data: result}, nil
	}
	return ok("proxied", contentText(result))
}

// MCPGetCapabilities reports the cached tool list for every installed server.
func (m *MCPImplementation) MCPGetCapabilities(context.Context) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	caps := make([]MCPCapability, 0, len(m.tools))
	ids := make([]string, 0, len(m.tools))
	for id := range m.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		caps = append(caps, MCPCapability{ServerID: id, Tools: toolNames(m.tools[id])})
	}
	return ok("capabilities", caps)
}

// Close closes every open MCP session before delegating to the backend.
func (m *MCPImplementation) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*mcpsdk.ClientSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*mcpsdk.ClientSession)
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
	return m.Implementation.Close(ctx)
}

func toolNames(tools []*mcpsdk.Tool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}

func contentText(result *mcpsdk.CallToolResult) string {
	for _, c := range result.Content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			return text.Text
		}
	}
	return ""
}
