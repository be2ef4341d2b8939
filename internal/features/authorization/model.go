package authorization

import (
	"go-reports/internal/evaluation/model"
)

// Role is the access level a user holds on a report. Roles are ordered by Rank.
type Role string

const (
	RoleNone    Role = ""
	RoleViewer  Role = "viewer"
	RoleEditor  Role = "editor"
	RoleManager Role = "manager"
)

// Wildcard matches any definition key or tenant in a grant.
const Wildcard = "*"

func (r Role) Rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleEditor:
		return 2
	case RoleManager:
		return 3
	}
	return 0
}

// AtLeast reports whether r grants at least the access of other.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= other.Rank()
}

// DefinitionAuthorization grants a user read access to the instances of one definition key.
// An empty Tenants list covers the default tenant only.
type DefinitionAuthorization struct {
	ID            string           `json:"id" bson:"_id" yaml:"id"`
	UserID        string           `json:"userId" bson:"userId" yaml:"userId" validate:"required"`
	DefinitionKey string           `json:"definitionKey" bson:"definitionKey" yaml:"definitionKey" validate:"required"`
	ReportType    model.ReportType `json:"reportType" bson:"reportType" yaml:"reportType" validate:"required,oneof=process decision"`
	Tenants       []string         `json:"tenants" bson:"tenants" yaml:"tenants"`
}

type CollectionMember struct {
	UserID string `json:"userId" bson:"userId" yaml:"userId"`
	Role   Role   `json:"role" bson:"role" yaml:"role"`
}

// Collection groups reports and the users allowed to see them.
type Collection struct {
	ID      string             `json:"id" bson:"_id" yaml:"id"`
	Name    string             `json:"name" bson:"name" yaml:"name"`
	Owner   string             `json:"owner" bson:"owner" yaml:"owner"`
	Members []CollectionMember `json:"members" bson:"members" yaml:"members"`
}

// MemberRole returns the role of userID in the collection, RoleNone when they are not a member.
func (c *Collection) MemberRole(userID string) Role {
	if c.Owner == userID {
		return RoleManager
	}
	for _, m := range c.Members {
		if m.UserID == userID {
			return m.Role
		}
	}
	return RoleNone
}

// Subject describes the report whose role is being resolved.
type Subject struct {
	Owner        string
	CollectionID string
	ReportType   model.ReportType
	Sources      []model.DataSource
	// AdHoc marks unsaved definitions evaluated by their author.
	AdHoc bool
}
