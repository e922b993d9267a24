// Package models contains domain models for promptvault.
package models

import (
	"sort"
	"time"
)

// Folder groups prompts for a single owner. Folders form a tree through ParentID.
type Folder struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	ParentID    *string   `json:"parent_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FolderSummary is the id/name pair embedded in prompt responses.
type FolderSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FolderListItem is a folder with the number of live prompts and direct children.
type FolderListItem struct {
	*Folder
	PromptCount int `json:"prompt_count"`
	ChildCount  int `json:"child_count"`
}

// FolderDetail is a folder with its live prompts and direct children.
type FolderDetail struct {
	*Folder
	Prompts  []*PromptListItem `json:"prompts"`
	Children []*Folder         `json:"children"`
}

// FolderNode is one node of a folder tree. Children are referenced by id.
type FolderNode struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID *string  `json:"parent_id,omitempty"`
	Children []string `json:"children"`
}

// FolderTree is an arena of folder nodes addressed by id.
type FolderTree struct {
	Nodes map[string]*FolderNode `json:"nodes"`
	Roots []string               `json:"roots"`
}

// BuildFolderTree assembles a tree from flat folder rows. Folders whose parent
// is not part of the input are treated as roots. Children and roots are
// ordered by name.
func BuildFolderTree(folders []*Folder) *FolderTree {
	tree := &FolderTree{Nodes: make(map[string]*FolderNode, len(folders)), Roots: []string{}}
	names := make(map[string]string, len(folders))
	for _, f := range folders {
		tree.Nodes[f.ID] = &FolderNode{ID: f.ID, Name: f.Name, ParentID: f.ParentID, Children: []string{}}
		names[f.ID] = f.Name
	}
	for _, f := range folders {
		if f.ParentID != nil {
			if parent, ok := tree.Nodes[*f.ParentID]; ok {
				parent.Children = append(parent.Children, f.ID)
				continue
			}
		}
		tree.Roots = append(tree.Roots, f.ID)
	}

	byName := func(ids []string) {
		sort.SliceStable(ids, func(i, j int) bool { return names[ids[i]] < names[ids[j]] })
	}
	byName(tree.Roots)
	for _, n := range tree.Nodes {
		byName(n.Children)
	}
	return tree
}

// FolderListing is a user's folders with counts plus the tree they form.
type FolderListing struct {
	Folders []*FolderListItem `json:"folders"`
	Tree    *FolderTree       `json:"tree"`
}
