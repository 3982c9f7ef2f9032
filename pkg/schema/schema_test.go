package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableSpec() SchemaSpec {
	return SchemaSpec{
		TopNode: "table",
		Nodes: map[string]NodeSpec{
			"table":     {Content: "tablerow+"},
			"tablerow":  {Content: "tablecell+"},
			"tablecell": {Content: "text*"},
			"text":      {},
		},
	}
}

func TestCreateAndFillSynthesizesScaffolding(t *testing.T) {
	s, err := Compile(tableSpec())
	require.NoError(t, err)

	result, err := s.CreateAndFill("table", "", nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "table", result.Node.Type)
	require.Len(t, result.Children, 1)
	row := result.Children[0]
	assert.Equal(t, "tablerow", row.Node.Type)

	require.Len(t, row.Children, 1)
	cell := row.Children[0]
	assert.Equal(t, "tablecell", cell.Node.Type)
	assert.Empty(t, cell.Children)

	ids := map[string]bool{
		string(result.Node.ID): true,
		string(row.Node.ID):    true,
		string(cell.Node.ID):   true,
	}
	assert.Len(t, ids, 3, "table/tablerow/tablecell must have distinct ids")
}

func TestMatchFragmentSucceedsIffEveryMatchTypeSucceeds(t *testing.T) {
	s, err := Compile(tableSpec())
	require.NoError(t, err)

	row := s.Nodes["tablerow"]
	state := row.ContentMatch

	ok := state.MatchFragment([]string{"tablecell", "tablecell"}, s.Nodes)
	require.NotNil(t, ok)
	assert.True(t, ok.ValidEnd)

	bad := state.MatchFragment([]string{"text"}, s.Nodes)
	assert.Nil(t, bad, "tablerow content does not allow bare text children")
}

func TestDefaultTypePrefersNoRequiredAttrs(t *testing.T) {
	spec := SchemaSpec{
		TopNode: "doc",
		Nodes: map[string]NodeSpec{
			"doc":       {Content: "paragraph"},
			"paragraph": {},
		},
	}
	s, err := Compile(spec)
	require.NoError(t, err)

	dt := s.Nodes["doc"].ContentMatch.DefaultType()
	require.NotNil(t, dt)
	assert.Equal(t, "paragraph", dt.Name)
}

func TestFillPrefersNoRequiredAttrsOverDeclaredOrder(t *testing.T) {
	spec := SchemaSpec{
		TopNode: "doc",
		Nodes: map[string]NodeSpec{
			// "figure" is declared before "paragraph" in the choice, but
			// it has a required attribute with no default, so Fill must
			// still pick "paragraph".
			"doc":       {Content: "(figure | paragraph)"},
			"figure":    {Attrs: map[string]AttributeSpec{"src": {}}},
			"paragraph": {},
		},
	}
	s, err := Compile(spec)
	require.NoError(t, err)

	fillTypes, ok := s.Nodes["doc"].ContentMatch.Fill(nil, true, s.Nodes)
	require.True(t, ok)
	require.Equal(t, []string{"paragraph"}, fillTypes)

	result, err := s.CreateAndFill("doc", "", nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Children, 1)
	assert.Equal(t, "paragraph", result.Children[0].Node.Type)
}

func TestFillReturnsShortestPath(t *testing.T) {
	spec := SchemaSpec{
		TopNode: "doc",
		Nodes: map[string]NodeSpec{
			"doc":       {Content: "section"},
			"section":   {Content: "paragraph?"},
			"paragraph": {},
		},
	}
	s, err := Compile(spec)
	require.NoError(t, err)

	fillTypes, ok := s.Nodes["doc"].ContentMatch.Fill(nil, true, s.Nodes)
	require.True(t, ok)
	assert.Equal(t, []string{"section"}, fillTypes)
}

func TestResolveNameExactTypeWinsOverGroup(t *testing.T) {
	spec := SchemaSpec{
		TopNode: "doc",
		Nodes: map[string]NodeSpec{
			"doc":       {Content: "block+"},
			"block":     {Group: []string{"block"}}, // a type literally named like the group it's tagged with
			"paragraph": {Group: []string{"block"}},
		},
	}
	s, err := Compile(spec)
	require.NoError(t, err)

	// "block" must resolve to the exact type, not the choice-of-group
	// expansion (spec §9 open question #2).
	state := s.Nodes["doc"].ContentMatch
	next := state.MatchType(s.Nodes["block"])
	require.NotNil(t, next)
	assert.True(t, next.ValidEnd)

	// a fragment of only "paragraph" must NOT satisfy "block+" since the
	// expression resolved to the exact type "block", not the group.
	bad := state.MatchFragment([]string{"paragraph"}, s.Nodes)
	assert.Nil(t, bad)
}

func TestGlobalAttributeMergedIntoNodeSpec(t *testing.T) {
	spec := SchemaSpec{
		TopNode: "doc",
		Nodes: map[string]NodeSpec{
			"doc": {},
		},
		GlobalAttrs: []GlobalAttribute{
			{AppliesTo: []string{"*"}, Attrs: map[string]AttributeSpec{
				"trackId": {Default: nil, HasDefault: true},
			}},
		},
	}
	s, err := Compile(spec)
	require.NoError(t, err)
	_, ok := s.Nodes["doc"].Attrs["trackId"]
	assert.True(t, ok)
}

func TestMarkExcludesDefaultsToSelf(t *testing.T) {
	spec := SchemaSpec{
		TopNode: "doc",
		Nodes: map[string]NodeSpec{
			"doc": {Marks: "_"},
		},
		Marks: map[string]MarkSpec{
			"link": {},
		},
	}
	s, err := Compile(spec)
	require.NoError(t, err)
	assert.True(t, s.Marks["link"].Excludes["link"])
}

func TestContentExprBoundedRange(t *testing.T) {
	spec := SchemaSpec{
		TopNode: "doc",
		Nodes: map[string]NodeSpec{
			"doc":  {Content: "p{2,3}"},
			"p":    {},
			"text": {},
		},
	}
	s, err := Compile(spec)
	require.NoError(t, err)
	state := s.Nodes["doc"].ContentMatch

	assert.Nil(t, state.MatchFragment([]string{"p"}, s.Nodes), "below min repeat count")
	two := state.MatchFragment([]string{"p", "p"}, s.Nodes)
	require.NotNil(t, two)
	assert.True(t, two.ValidEnd)
	three := state.MatchFragment([]string{"p", "p", "p"}, s.Nodes)
	require.NotNil(t, three)
	assert.True(t, three.ValidEnd)
	assert.Nil(t, state.MatchFragment([]string{"p", "p", "p", "p"}, s.Nodes), "above max repeat count")
}
