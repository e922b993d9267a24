// Package models contains domain models for promptvault.
package models

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ModelsSuite is a test suite for domain model helpers.
type ModelsSuite struct {
	suite.Suite
}

func TestModelsSuite(t *testing.T) {
	suite.Run(t, new(ModelsSuite))
}

// TestEnumValidity tests the Valid helpers on the enum types.
func (s *ModelsSuite) TestEnumValidity() {
	for _, ct := range ContentTypes {
		s.True(ct.Valid(), ct)
	}
	s.False(ContentType("NOTE").Valid())

	s.True(VisibilityPrivate.Valid())
	s.True(VisibilityPublic.Valid())
	s.True(VisibilityTeam.Valid())
	s.False(Visibility("private").Valid())

	s.True(TeamRoleAdmin.Valid())
	s.True(TeamRoleMember.Valid())
	s.False(TeamRole("OWNER").Valid())

	s.True(ActionCopied.Valid())
	s.False(ActivityAction("LIKED").Valid())
}

// TestPromptFieldsClone tests that clones do not share mutable state.
func (s *ModelsSuite) TestPromptFieldsClone() {
	url := "https://example.com/p"
	orig := PromptFields{
		Title:          "t",
		Content:        "c",
		ContentURL:     &url,
		Variables:      Variables{{Name: "topic", Description: "what to write about"}},
		ExampleIO:      ExampleIOs{{Input: "in", Output: "out"}},
		Tags:           JSONStringArray{"a", "b"},
		CustomSections: JSONObject{"nested": map[string]any{"k": "v"}},
	}

	clone := orig.Clone()
	s.Equal(orig, clone)

	*clone.ContentURL = "changed"
	clone.Variables[0].Name = "changed"
	clone.Tags[0] = "changed"
	clone.CustomSections["nested"].(map[string]any)["k"] = "changed"

	s.Equal("https://example.com/p", *orig.ContentURL)
	s.Equal("topic", orig.Variables[0].Name)
	s.Equal("a", orig.Tags[0])
	s.Equal("v", orig.CustomSections["nested"].(map[string]any)["k"])
}

// TestBuildFolderTree tests arena tree assembly from flat rows.
func (s *ModelsSuite) TestBuildFolderTree() {
	root := "root"
	mid := "mid"
	missing := "gone"
	folders := []*Folder{
		{ID: "leaf-b", Name: "b", ParentID: &mid},
		{ID: "leaf-a", Name: "a", ParentID: &mid},
		{ID: mid, Name: "mid", ParentID: &root},
		{ID: root, Name: "root"},
		{ID: "orphan", Name: "orphan", ParentID: &missing},
	}

	tree := BuildFolderTree(folders)
	s.Len(tree.Nodes, 5)
	s.Equal([]string{"orphan", "root"}, tree.Roots)
	s.Equal([]string{"mid"}, tree.Nodes[root].Children)
	s.Equal([]string{"leaf-a", "leaf-b"}, tree.Nodes[mid].Children)
	s.Empty(tree.Nodes["leaf-a"].Children)
}

// TestJSONStringArray tests JSONStringArray scanning.
func TestJSONStringArray(t *testing.T) {
	tests := []struct {
		input    interface{}
		name     string
		expected JSONStringArray
		wantErr  bool
	}{
		{name: "nil input", input: nil, expected: nil},
		{name: "empty string", input: "", expected: nil},
		{name: "json array string", input: `["item1", "item2"]`, expected: JSONStringArray{"item1", "item2"}},
		{name: "json array bytes", input: []byte(`["a", "b", "c"]`), expected: JSONStringArray{"a", "b", "c"}},
		{name: "unsupported type", input: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var arr JSONStringArray
			err := arr.Scan(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, arr)
			}
		})
	}
}

// TestJSONValues tests the driver.Valuer side of the JSON column types.
func TestJSONValues(t *testing.T) {
	v, err := JSONStringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = Variables(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ExampleIOs{{Input: "2+2", Output: "4"}}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"input":"2+2","output":"4"}]`, v.(string))

	v, err = JSONObject{"model": "gpt", "temperature": 0.2}.Value()
	require.NoError(t, err)

	var back JSONObject
	require.NoError(t, back.Scan(v))
	assert.Equal(t, "gpt", back["model"])
	assert.Equal(t, 0.2, back["temperature"])
}

// TestPromptDetail_JSON tests that embedded prompt fields are flattened on the wire.
func TestPromptDetail_JSON(t *testing.T) {
	detail := &PromptDetail{
		Prompt: &Prompt{
			ID:           "p1",
			PromptFields: PromptFields{Title: "Greeting", Content: "Say hi", Tags: JSONStringArray{"intro"}},
			ContentType:  ContentTypePrompt,
			OwnerID:      "u1",
			Visibility:   VisibilityPrivate,
		},
		Owner:      &UserSummary{ID: "u1", Username: "alice"},
		CoCreators: []*PromptCoCreator{},
		Teams:      []*TeamSummary{},
	}

	data, err := json.Marshal(detail)
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, "p1", result["id"])
	assert.Equal(t, "Greeting", result["title"])
	assert.Equal(t, "PRIVATE", result["visibility"])
	assert.Equal(t, "alice", result["owner"].(map[string]interface{})["username"])
	assert.NotContains(t, result, "deleted_at")
}

// TestUserSummary_HidesPassword tests that the password hash is never serialized.
func TestUserSummary_HidesPassword(t *testing.T) {
	u := &User{ID: "u1", Username: "bob", PasswordHash: "secret-hash"}
	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-hash")
	assert.Equal(t, "bob", u.Summary().Username)
	assert.Nil(t, (*User)(nil).Summary())
}
