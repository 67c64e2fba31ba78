// Package sandbox defines the Sandbox collaborator contract: the minimum
// surface the agent runtime core consumes from a sandboxed execution
// environment. Concrete container/VM implementations are out of scope;
// this package fixes the Go-side interface and provides an in-memory
// implementation used for tests and local development, using the same
// tool-executor shape and ToolResult envelope as the rest of this module.
package sandbox

import (
	"context"
	"time"
)

// Result is the uniform envelope every Sandbox operation returns.
type Result struct {
	Success bool
	Message string
	Data    any
}

// FileInfo describes one entry returned by Sandbox.FileList.
type FileInfo struct {
	Path    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// MCPCapability describes one MCP server's tool surface, as reported by
// Sandbox.MCPGetCapabilities.
type MCPCapability struct {
	ServerID string
	Tools    []string
}

// Sandbox is a single agent's exclusively-owned execution environment;
// it is never shared across agents, for its entire lifetime.
type Sandbox struct {
	ID   string
	impl Implementation
}

// Implementation is the provider-specific backend a Sandbox delegates
// to. Swapping Implementation is how a concrete container/VM/MCP-proxy
// sandbox is plugged in without touching the agent runtime core.
type Implementation interface {
	ExecCommand(ctx context.Context, session, dir, cmd string) (Result, error)

	FileRead(ctx context.Context, path string) (Result, error)
	FileWrite(ctx context.Context, path string, content []byte) (Result, error)
	FileUpload(ctx context.Context, path string, content []byte) (Result, error)
	FileDownload(ctx context.Context, path string) (Result, error)
	FileList(ctx context.Context, dirGlob string) (Result, error)
	FileDelete(ctx context.Context, path string) (Result, error)
	FileExists(ctx context.Context, path string) (Result, error)

	GetCDPURL(ctx context.Context) (Result, error)
	GetVNCURL(ctx context.Context) (Result, error)
	GetCodeServerURL(ctx context.Context) (Result, error)

	MCPInstall(ctx context.Context, serverID string) (Result, error)
	MCPUninstall(ctx context.Context, serverID string) (Result, error)
	MCPList(ctx context.Context) (Result, error)
	MCPProxyRequest(ctx context.Context, serverID, toolName, argsJSON string) (Result, error)
	MCPGetCapabilities(ctx context.Context) (Result, error)

	Close(ctx context.Context) error
}

// Factory obtains or creates the Sandbox bound to an agent id, enabling
// deterministic rehydration after a restart: the sandbox is identified
// by the agent id, not by a separately allocated handle.
type Factory interface {
	GetOrCreate(ctx context.Context, sandboxID, userID string, env map[string]string) (*Sandbox, error)
}

// New wraps a provider Implementation as a Sandbox bound to id.
func New(id string, impl Implementation) *Sandbox {
	return &Sandbox{ID: id, impl: impl}
}

func (s *Sandbox) ExecCommand(ctx context.Context, session, dir, cmd string) (Result, error) {
	return s.impl.ExecCommand(ctx, session, dir, cmd)
}

func (s *Sandbox) FileRead(ctx context.Context, path string) (Result, error) {
	return s.impl.FileRead(ctx, path)
}

func (s *Sandbox) FileWrite(ctx context.Context, path string, content []byte) (Result, error) {
	return s.impl.FileWrite(ctx, path, content)
}

func (s *Sandbox) FileUpload(ctx context.Context, path string, content []byte) (Result, error) {
	return s.impl.FileUpload(ctx, path, content)
}

func (s *Sandbox) FileDownload(ctx context.Context, path string) (Result, error) {
	return s.impl.FileDownload(ctx, path)
}

func (s *Sandbox) FileList(ctx context.Context, dirGlob string) (Result, error) {
	return s.impl.FileList(ctx, dirGlob)
}

func (s *Sandbox) FileDelete(ctx context.Context, path string) (Result, error) {
	return s.impl.FileDelete(ctx, path)
}

func (s *Sandbox) FileExists(ctx context.Context, path string) (Result, error) {
	return s.impl.FileExists(ctx, path)
}

func (s *Sandbox) GetCDPURL(ctx context.Context) (Result, error) { return s.impl.GetCDPURL(ctx) }
func (s *Sandbox) GetVNCURL(ctx context.Context) (Result, error) { return s.impl.GetVNCURL(ctx) }
func (s *Sandbox) GetCodeServerURL(ctx context.Context) (Result, error) {
	return s.impl.GetCodeServerURL(ctx)
}

func (s *Sandbox) MCPInstall(ctx context.Context, serverID string) (Result, error) {
	return s.impl.MCPInstall(ctx, serverID)
}
func (s *Sandbox) MCPUninstall(ctx context.Context, serverID string) (Result, error) {
	return s.impl.MCPUninstall(ctx, serverID)
}
func (s *Sandbox) MCPList(ctx context.Context) (Result, error) { return s.impl.MCPList(ctx) }
func (s *Sandbox) MCPProxyRequest(ctx context.Context, serverID, toolName, argsJSON string) (Result, error) {
	return s.impl.MCPProxyRequest(ctx, serverID, toolName, argsJSON)
}
func (s *Sandbox) MCPGetCapabilities(ctx context.Context) (Result, error) {
	return s.impl.MCPGetCapabilities(ctx)
}

// Close releases the sandbox's underlying resources.
func (s *Sandbox) Close(ctx context.Context) error {
	return s.impl.Close(ctx)
}
