package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	deepsearch "github.com/quantalogic/open-deepsearch"
)

const fileReadLimit = 1 << 20

// Workspace is a directory that the file tools are confined to. Paths given
// by the model are resolved relative to the root and may not escape it.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at the given directory.
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve workspace root", goerr.V("root", root))
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create workspace root", goerr.V("root", abs))
	}
	return &Workspace{root: abs}, nil
}

// Tools returns the file tools bound to this workspace.
func (w *Workspace) Tools() []deepsearch.Tool {
	return []deepsearch.Tool{
		&WriteFile{ws: w},
		&ReadFile{ws: w},
		&ListDirectory{ws: w},
	}
}

// resolve maps a model-supplied path into the workspace, rejecting escapes.
func (w *Workspace) resolve(name string) (string, error) {
	if name == "" {
		return "", goerr.New("path is required")
	}
	path := filepath.Join(w.root, filepath.Clean("/"+name))
	if path != w.root && !strings.HasPrefix(path, w.root+string(filepath.Separator)) {
		return "", goerr.New("path escapes workspace", goerr.V("path", name))
	}
	return path, nil
}

// WriteFile writes text content to a file in the workspace.
type WriteFile struct {
	ws *Workspace
}

func (t *WriteFile) Spec() deepsearch.ToolSpec {
	return deepsearch.ToolSpec{
		Name:        "write_file",
		Description: "Write text content to a file in the working directory. Creates parent directories as needed.",
		Parameters: map[string]*deepsearch.Parameter{
			"path": {
				Type:        deepsearch.TypeString,
				Description: "Relative path of the file to write",
			},
			"content": {
				Type:        deepsearch.TypeString,
				Description: "Text content to write",
			},
		},
		Required: []string{"path", "content"},
	}
}

func (t *WriteFile) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, _ := args["path"].(string)
	content, ok := args["content"].(string)
	if !ok {
		return nil, goerr.New("content is required")
	}

	path, err := t.ws.resolve(name)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create directory", goerr.V("path", name))
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, goerr.Wrap(err, "failed to write file", goerr.V("path", name))
	}

	return map[string]any{
		"path":  name,
		"bytes": len(content),
	}, nil
}

// ReadFile reads a text file from the workspace.
type ReadFile struct {
	ws *Workspace
}

func (t *ReadFile) Spec() deepsearch.ToolSpec {
	return deepsearch.ToolSpec{
		Name:        "read_file",
		Description: "Read a text file from the working directory.",
		Parameters: map[string]*deepsearch.Parameter{
			"path": {
				Type:        deepsearch.TypeString,
				Description: "Relative path of the file to read",
			},
		},
		Required: []string{"path"},
	}
}

func (t *ReadFile) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, _ := args["path"].(string)

	path, err := t.ws.resolve(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat file", goerr.V("path", name))
	}
	if info.Size() > fileReadLimit {
		return nil, goerr.New("file too large", goerr.V("path", name), goerr.V("size", info.Size()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read file", goerr.V("path", name))
	}

	return map[string]any{
		"path":    name,
		"content": string(data),
	}, nil
}

// ListDirectory lists the entries of a directory in the workspace.
type ListDirectory struct {
	ws *Workspace
}

func (t *ListDirectory) Spec() deepsearch.ToolSpec {
	return deepsearch.ToolSpec{
		Name:        "list_directory",
		Description: "List files and directories in the working directory.",
		Parameters: map[string]*deepsearch.Parameter{
			"path": {
				Type:        deepsearch.TypeString,
				Description: "Relative path of the directory to list (default: workspace root)",
				Default:     ".",
			},
		},
	}
}

func (t *ListDirectory) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, _ := args["path"].(string)
	if name == "" {
		name = "."
	}

	path, err := t.ws.resolve(name)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read directory", goerr.V("path", name))
	}

	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"name": entry.Name(),
			"dir":  entry.IsDir(),
		}
		if info, err := entry.Info(); err == nil && !entry.IsDir() {
			item["size"] = info.Size()
		}
		items = append(items, item)
	}

	return map[string]any{
		"path":    name,
		"entries": items,
	}, nil
}
