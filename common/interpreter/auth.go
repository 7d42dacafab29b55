package interpreter

import (
	"github.com/goccy/go-json"
)

const AnonymousUser = "anonymous"

// UsernamePassword is a credential bound to a named entity (for example a database prefix).
type UsernamePassword struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserCredentials maps entity names to credentials.
type UserCredentials struct {
	UserCredentials map[string]UsernamePassword `json:"userCredentials"`
}

func NewUserCredentials() *UserCredentials {
	return &UserCredentials{UserCredentials: make(map[string]UsernamePassword)}
}

func (c *UserCredentials) Get(entity string) (UsernamePassword, bool) {
	if c == nil || c.UserCredentials == nil {
		return UsernamePassword{}, false
	}
	up, ok := c.UserCredentials[entity]
	return up, ok
}

func (c *UserCredentials) Put(entity string, up UsernamePassword) {
	if c.UserCredentials == nil {
		c.UserCredentials = make(map[string]UsernamePassword)
	}
	c.UserCredentials[entity] = up
}

// AuthenticationInfo identifies the principal on whose behalf code is executed.
type AuthenticationInfo struct {
	User            string           `json:"user"`
	Roles           []string         `json:"roles,omitempty"`
	Ticket          string           `json:"ticket,omitempty"`
	UserCredentials *UserCredentials `json:"userCredentials,omitempty"`
}

func NewAuthenticationInfo(user string) *AuthenticationInfo {
	return &AuthenticationInfo{User: user}
}

// Anonymous returns the AuthenticationInfo used when no principal is known.
func Anonymous() *AuthenticationInfo {
	return &AuthenticationInfo{User: AnonymousUser, Ticket: AnonymousUser}
}

func (a *AuthenticationInfo) IsAnonymous() bool {
	return a == nil || a.User == "" || a.User == AnonymousUser
}

// UsersAndRoles returns the user name followed by all of its roles.
func (a *AuthenticationInfo) UsersAndRoles() []string {
	if a == nil {
		return nil
	}
	return append([]string{a.User}, a.Roles...)
}

func (a *AuthenticationInfo) ToJson() string {
	if a == nil {
		return ""
	}
	m, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	return string(m)
}

// AuthenticationInfoFromJson deserializes an AuthenticationInfo. The empty string yields the anonymous principal.
func AuthenticationInfoFromJson(data string) (*AuthenticationInfo, error) {
	if data == "" || data == "null" {
		return Anonymous(), nil
	}

	info := &AuthenticationInfo{}
	if err := json.Unmarshal([]byte(data), info); err != nil {
		return nil, err
	}
	return info, nil
}
