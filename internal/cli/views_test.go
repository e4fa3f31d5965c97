package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/nbhd/internal/community"
	"github.com/roach88/nbhd/internal/engine"
)

func TestResolutionView_FromState(t *testing.T) {
	elm := community.Community{ID: "c1", Name: "Elm St"}
	s := engine.State{
		Active:     &elm,
		Candidates: []community.Community{elm},
		Attempt:    3,
		LastError:  engine.NewTimeoutError("u1", 3, engine.DefaultSafetyTimeout),
	}

	v := newResolutionView("u1", s, &engine.Notice{Message: "try again"})
	assert.Equal(t, int64(3), v.Attempt)
	assert.Equal(t, "TIMEOUT", v.ErrorCode)
	assert.Contains(t, v.Error, "did not finish within 10s")
	assert.Equal(t, "try again", v.Notice)
	assert.Equal(t, `attempt=3 loading=false active=c1 candidates=1 privileged=false error=TIMEOUT notice="try again"`, v.line())
}

func TestResolutionView_UnclassifiedError(t *testing.T) {
	v := newResolutionView("u1", engine.State{LastError: errors.New("boom")}, nil)
	assert.Empty(t, v.ErrorCode)
	assert.Equal(t, "boom", v.Error)
	assert.NotNil(t, v.Candidates)
	assert.Equal(t, `attempt=0 loading=false active=- candidates=0 privileged=false error="boom"`, v.line())
}

func TestResolutionView_String(t *testing.T) {
	elm := community.Community{ID: "c1", Name: "Elm St"}
	oak := community.Community{ID: "c2", Name: "Oak Ave"}
	v := newResolutionView("u1", engine.State{
		Active:     &oak,
		Candidates: []community.Community{elm, oak},
		Attempt:    1,
	}, nil)

	want := "Actor:      u1\n" +
		"Attempt:    1\n" +
		"Active:     Oak Ave (c2)\n" +
		"Privileged: false\n" +
		"Candidates: 2\n" +
		"    c1  Elm St\n" +
		"  * c2  Oak Ave"
	assert.Equal(t, want, v.String())
}

func TestCommunityList_String(t *testing.T) {
	assert.Equal(t, "No communities.", communityList(nil).String())

	out := communityList{{ID: "c1", Name: "Elm St", City: "Springfield"}}.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Springfield")
	assert.NotContains(t, out, "\n\n")
}
