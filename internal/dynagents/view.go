package dynagents

import (
	"cmp"
	"path"
	"slices"
	"strings"
)

// FileNode is a directory or file in the activity tree. Directories sort
// before files; siblings are ordered by name.
type FileNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Dir      bool        `json:"dir"`
	Modified bool        `json:"modified,omitempty"`
	Read     bool        `json:"read,omitempty"`
	Agents   []string    `json:"agents,omitempty"`
	Children []*FileNode `json:"children,omitempty"`
}

type View struct {
	Agents      []Agent     `json:"agents"`
	FileTree    []*FileNode `json:"fileTree"`
	ActiveFiles []string    `json:"activeFiles"`
}

// View derives the directory, the file tree and the active file set.
func (a *Aggregator) View() View {
	return View{
		Agents:      a.Agents(),
		FileTree:    buildTree(a.agents),
		ActiveFiles: activeFiles(a.agents),
	}
}

type touch struct {
	modified bool
	read     bool
	agents   []string
}

func buildTree(agents []Agent) []*FileNode {
	files := map[string]*touch{}
	mark := func(p, agentID string, modified bool) {
		p = cleanPath(p)
		if p == "" {
			return
		}
		t, ok := files[p]
		if !ok {
			t = &touch{}
			files[p] = t
		}
		if modified {
			t.modified = true
		} else {
			t.read = true
		}
		if !slices.Contains(t.agents, agentID) {
			t.agents = append(t.agents, agentID)
		}
	}
	for _, ag := range agents {
		for _, p := range ag.FilesModified {
			mark(p, ag.ID, true)
		}
		for _, p := range ag.FilesRead {
			mark(p, ag.ID, false)
		}
	}

	// A path reported as a file and also as a directory prefix shares one
	// node, marked as a directory and keeping its touch flags.
	root := &FileNode{Dir: true}
	nodes := map[string]*FileNode{"": root}
	child := func(parent *FileNode, path, name string) *FileNode {
		n, ok := nodes[path]
		if !ok {
			n = &FileNode{Name: name, Path: path}
			nodes[path] = n
			parent.Children = append(parent.Children, n)
		}
		return n
	}
	for p, t := range files {
		parent := root
		parts := strings.Split(p, "/")
		for i, name := range parts[:len(parts)-1] {
			parent = child(parent, strings.Join(parts[:i+1], "/"), name)
			parent.Dir = true
		}
		agents := slices.Clone(t.agents)
		slices.Sort(agents)
		n := child(parent, p, parts[len(parts)-1])
		n.Modified = t.modified
		n.Read = t.read
		n.Agents = agents
	}
	sortTree(root)
	if root.Children == nil {
		return []*FileNode{}
	}
	return root.Children
}

func sortTree(n *FileNode) {
	slices.SortFunc(n.Children, func(a, b *FileNode) int {
		if a.Dir != b.Dir {
			if a.Dir {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Name, b.Name)
	})
	for _, c := range n.Children {
		if c.Dir {
			sortTree(c)
		}
	}
}

// cleanPath makes a reported path relative and slash-separated. Leading
// slashes and ".." segments cannot escape the tree root.
func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return ""
	}
	return p
}

func activeFiles(agents []Agent) []string {
	var out []string
	for _, ag := range agents {
		if ag.Status != Running {
			continue
		}
		for _, p := range ag.FilesModified {
			if p = cleanPath(p); p != "" {
				out = append(out, p)
			}
		}
		for _, p := range ag.FilesRead {
			if p = cleanPath(p); p != "" {
				out = append(out, p)
			}
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		return []string{}
	}
	return out
}
