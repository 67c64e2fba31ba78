package sandbox

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// MemoryImplementation is an in-process Sandbox Implementation backed by
// a map, used for local development and tests where no real container or
// VM runtime is available. It honours the same {success, message, data}
// contract a production implementation would.
type MemoryImplementation struct {
	mu       sync.RWMutex
	files    map[string][]byte
	mcp      map[string]MCPCapability
	commands []string
}

// NewMemoryImplementation creates an empty in-memory sandbox backend.
func NewMemoryImplementation() *MemoryImplementation {
	return &MemoryImplementation{
		files: make(map[string][]byte),
		mcp:   make(map[string]MCPCapability),
	}
}

func ok(msg string, data any) (Result, error) { return Result{Success: true, Message: msg, Data: data}, nil }

func (m *MemoryImplementation) ExecCommand(_ context.Context, session, dir, cmd string) (Result, error) {
	m.mu.Lock()
	m.commands = append(m.commands, cmd)
	m.mu.Unlock()
	return ok("executed", map[string]string{"session": session, "dir": dir, "cmd": cmd, "stdout": ""})
}

func (m *MemoryImplementation) FileRead(_ context.Context, path string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, exists := m.files[path]
	if !exists {
		return Result{Success: false, Message: fmt.Sprintf("file not found: %s", path)}, nil
	}
	return ok("read", append([]byte(nil), content...))
}

func (m *MemoryImplementation) FileWrite(_ context.Context, path string, content []byte) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), content...)
	return ok("written", nil)
}

func (m *MemoryImplementation) FileUpload(ctx context.Context, path string, content []byte) (Result, error) {
	return m.FileWrite(ctx, path, content)
}

func (m *MemoryImplementation) FileDownload(ctx context.Context, path string) (Result, error) {
	return m.FileRead(ctx, path)
}

func (m *MemoryImplementation) FileList(_ context.Context, dirGlob string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []FileInfo
	for path, content := range m.files {
		matched, err := doublestar.Match(dirGlob, path)
		if err != nil {
			return Result{Success: false, Message: fmt.Sprintf("invalid glob %q: %v", dirGlob, err)}, nil
		}
		if matched {
			matches = append(matches, FileInfo{Path: path, Size: int64(len(content))})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Path < matches[j].Path })
	return ok("listed", matches)
}

func (m *MemoryImplementation) FileDelete(_ context.Context, path string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return ok("deleted", nil)
}

func (m *MemoryImplementation) FileExists(_ context.Context, path string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.files[path]
	return ok("checked", exists)
}

func (m *MemoryImplementation) GetCDPURL(context.Context) (Result, error) {
	return ok("cdp url", "ws://localhost:0/cdp")
}

func (m *MemoryImplementation) GetVNCURL(context.Context) (Result, error) {
	return ok("vnc url", "http://localhost:0/vnc")
}

func (m *MemoryImplementation) GetCodeServerURL(context.Context) (Result, error) {
	return ok("code-server url", "http://localhost:0/code-server")
}

func (m *MemoryImplementation) MCPInstall(_ context.Context, serverID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mcp[serverID] = MCPCapability{ServerID: serverID}
	return ok("installed", nil)
}

func (m *MemoryImplementation) MCPUninstall(_ context.Context, serverID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mcp, serverID)
	return ok("uninstalled", nil)
}

func (m *MemoryImplementation) MCPList(context.Context) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.mcp))
	for id := range m.mcp {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ok("listed", ids)
}

func (m *MemoryImplementation) MCPProxyRequest(_ context.Context, serverID, toolName, argsJSON string) (Result, error) {
	m.mu.RLock()
	_, installed := m.mcp[serverID]
	m.mu.RUnlock()
	if !installed {
		return Result{Success: false, Message: fmt.Sprintf("MCP server not installed: %s", serverID)}, nil
	}
	return ok("proxied", map[string]string{"tool": toolName, "args": argsJSON})
}

func (m *MemoryImplementation) MCPGetCapabilities(context.Context) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	caps := make([]MCPCapability, 0, len(m.mcp))
	for _, c := range m.mcp {
		caps = append(caps, c)
	}
	return ok("capabilities", caps)
}

func (m *MemoryImplementation) Close(context.Context) error { return nil }

// MemoryFactory is a Factory that hands out MemoryImplementation-backed
// sandboxes keyed by agent id, reused across GetOrCreate calls so
// rehydration observes the same file/MCP state.
type MemoryFactory struct {
	mu       sync.Mutex
	sandboxes map[string]*Sandbox
}

// NewMemoryFactory creates an empty in-memory sandbox factory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{sandboxes: make(map[string]*Sandbox)}
}

// GetOrCreate returns the existing sandbox for sandboxID, or creates one.
func (f *MemoryFactory) GetOrCreate(_ context.Context, sandboxID, _ string, _ map[string]string) (*Sandbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sb, exists := f.sandboxes[sandboxID]; exists {
		return sb, nil
	}
	sb := New(sandboxID, NewMemoryImplementation())
	f.sandboxes[sandboxID] = sb
	return sb, nil
}
