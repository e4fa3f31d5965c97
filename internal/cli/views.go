package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/roach88/nbhd/internal/community"
	"github.com/roach88/nbhd/internal/engine"
	"github.com/roach88/nbhd/internal/store"
)

// communityList renders as a table in text mode and as an array in JSON.
type communityList []community.Community

func (l communityList) String() string {
	if len(l) == 0 {
		return "No communities."
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCITY\tREGION\tPOSTAL CODE\tCREATED BY")
	for _, c := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, dash(c.City), dash(c.Region), dash(c.PostalCode), dash(string(c.CreatedBy)))
	}
	tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

type seedView struct {
	Fixture string `json:"fixture"`
	store.SeedResult
}

func (v seedView) String() string {
	return fmt.Sprintf("Seeded %s: %d communities, %d memberships, %d privileged actors",
		v.Fixture, v.Communities, v.Memberships, v.Privileged)
}

// resolutionView is one observed engine state for an actor.
type resolutionView struct {
	Actor      community.ActorID     `json:"actor"`
	Attempt    int64                 `json:"attempt"`
	Active     *community.Community  `json:"active"`
	Candidates []community.Community `json:"candidates"`
	Privileged bool                  `json:"privileged"`
	Loading    bool                  `json:"loading"`
	Error      string                `json:"error,omitempty"`
	ErrorCode  string                `json:"error_code,omitempty"`
	Notice     string                `json:"notice,omitempty"`
}

func newResolutionView(actor community.ActorID, s engine.State, n *engine.Notice) resolutionView {
	v := resolutionView{
		Actor:      actor,
		Attempt:    s.Attempt,
		Active:     s.Active,
		Candidates: s.Candidates,
		Privileged: s.Privileged,
		Loading:    s.Loading,
	}
	if v.Candidates == nil {
		v.Candidates = []community.Community{}
	}
	if s.LastError != nil {
		v.Error = s.LastError.Error()
		var re *engine.ResolutionError
		if errors.As(s.LastError, &re) {
			v.ErrorCode = string(re.Code)
		}
	}
	if n != nil {
		v.Notice = n.Message
	}
	return v
}

func (v resolutionView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Actor:      %s\n", v.Actor)
	fmt.Fprintf(&b, "Attempt:    %d\n", v.Attempt)
	if v.Active != nil {
		fmt.Fprintf(&b, "Active:     %s (%s)\n", v.Active.Name, v.Active.ID)
	} else {
		fmt.Fprintln(&b, "Active:     -")
	}
	fmt.Fprintf(&b, "Privileged: %t\n", v.Privileged)
	if v.Loading {
		fmt.Fprintln(&b, "Loading:    true")
	}
	if v.Error != "" {
		fmt.Fprintf(&b, "Error:      %s\n", v.Error)
	}
	if v.Notice != "" {
		fmt.Fprintf(&b, "Notice:     %s\n", v.Notice)
	}
	fmt.Fprintf(&b, "Candidates: %d", len(v.Candidates))
	for _, c := range v.Candidates {
		marker := " "
		if v.Active != nil && v.Active.ID == c.ID {
			marker = "*"
		}
		fmt.Fprintf(&b, "\n  %s %s  %s", marker, c.ID, c.Name)
	}
	return b.String()
}

// line is the one-line form watch prints per published state.
func (v resolutionView) line() string {
	active := "-"
	if v.Active != nil {
		active = v.Active.ID
	}
	s := fmt.Sprintf("attempt=%d loading=%t active=%s candidates=%d privileged=%t",
		v.Attempt, v.Loading, active, len(v.Candidates), v.Privileged)
	if v.ErrorCode != "" {
		s += " error=" + v.ErrorCode
	} else if v.Error != "" {
		s += fmt.Sprintf(" error=%q", v.Error)
	}
	if v.Notice != "" {
		s += fmt.Sprintf(" notice=%q", v.Notice)
	}
	return s
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
