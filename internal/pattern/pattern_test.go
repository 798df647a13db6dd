package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/model"
)

func TestCompileRejectsUnknownVariable(t *testing.T) {
	_, err := Compile("[id]-[bogus].mdx")
	require.Error(t, err)
}

func TestEmitNormalizesMdxToMd(t *testing.T) {
	p, err := Compile(Default)
	require.NoError(t, err)

	iss := &model.Issue{ID: "bd-a1b2c3", Title: "Fix the Auth Bug!", Type: model.TypeBug}
	name := Emit(p, iss, 0)
	require.Equal(t, "bd-a1b2c3-fix-the-auth-bug.md", name)
}

func TestEmitParseRoundTripIDAndType(t *testing.T) {
	p, err := Compile("[id]-[type]-[title].mdx")
	require.NoError(t, err)

	iss := &model.Issue{ID: "bd-a1b2c3", Title: "Improve Render Speed", Type: model.TypeFeature}
	name := Emit(p, iss, 0)

	extracted, err := Parse(p, name)
	require.NoError(t, err)

	// P5: extracted id and type exactly match; title is best-effort only.
	require.Equal(t, iss.ID, extracted.ID)
	require.Equal(t, string(iss.Type), extracted.Type)
	require.Equal(t, "improve render speed", extracted.Title)
}

func TestPriorityVariable(t *testing.T) {
	p, err := Compile("[id]-[priority].mdx")
	require.NoError(t, err)

	iss := &model.Issue{ID: "bd-zzz999", Priority: 3}
	name := Emit(p, iss, 0)
	require.Equal(t, "bd-zzz999-p3.md", name)

	extracted, err := Parse(p, name)
	require.NoError(t, err)
	require.Equal(t, 3, extracted.Priority)
}

func TestPrefixVariable(t *testing.T) {
	p, err := Compile("[prefix]/[id].mdx")
	require.NoError(t, err)

	iss := &model.Issue{ID: "proj-a1b2c3"}
	name := Emit(p, iss, 0)
	require.Equal(t, "proj/proj-a1b2c3.md", name)
}
