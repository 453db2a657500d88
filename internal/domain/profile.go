package domain

import (
	"fmt"
	"strings"
)

type ProfileID string

// Profile is a locally configured login: which backend to talk to, which
// context it authenticates as and where its API token lives.
type Profile struct {
	ID       ProfileID
	Name     string
	BaseURL  string
	Context  SessionContext
	TokenRef string
}

func (p Profile) Validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(p.BaseURL) == "" {
		return fmt.Errorf("base url is required")
	}
	if strings.TrimSpace(p.Context.AuthenticationContextID) == "" {
		return fmt.Errorf("authentication context is required")
	}

	return nil
}

// DisplayName falls back to the id when no name is set.
func (p Profile) DisplayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return string(p.ID)
}
