package community

import "time"

// ActorID identifies the signed-in actor. The zero value means signed out.
type ActorID string

// SignedOut reports whether the actor identity is absent.
func (a ActorID) SignedOut() bool {
	return a == ""
}

// Community is one neighborhood or group.
type Community struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	City       string    `json:"city,omitempty" yaml:"city,omitempty"`
	Region     string    `json:"region,omitempty" yaml:"region,omitempty"`
	PostalCode string    `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	CreatedBy  ActorID   `json:"created_by" yaml:"created_by"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// MembershipStatus is the lifecycle status of a membership row.
type MembershipStatus string

const (
	// StatusActive marks a membership that grants the community context.
	StatusActive MembershipStatus = "active"
	// StatusPending marks a requested but not yet approved membership.
	StatusPending MembershipStatus = "pending"
	// StatusLeft marks a membership the actor has ended.
	StatusLeft MembershipStatus = "left"
)

// Membership relates an actor to a community.
type Membership struct {
	ActorID     ActorID          `json:"actor_id" yaml:"actor_id"`
	CommunityID string           `json:"community_id" yaml:"community_id"`
	Status      MembershipStatus `json:"status" yaml:"status"`
	JoinedAt    time.Time        `json:"joined_at" yaml:"joined_at"`
}

// IsActive reports whether the membership is in the active status.
func (m Membership) IsActive() bool {
	return m.Status == StatusActive
}

// Dedupe returns communities with duplicate IDs removed.
// The first occurrence wins and input order is preserved.
func Dedupe(in []Community) []Community {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]Community, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// IndexOf returns the position of the community with the given ID, or -1.
func IndexOf(list []Community, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
