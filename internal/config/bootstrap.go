package config

import (
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-authz-server/clients"
)

// BootstrapConfig lists records seeded into the stores at startup.
type BootstrapConfig interface {
	GetClients() []clients.Client
	GetUsers() []BootstrapUser
}

// BootstrapUser is a local account to create at startup. Either Password or
// PasswordHash (bcrypt) must be set.
type BootstrapUser struct {
	Nickname     string `json:"nickname"`
	DisplayName  string `json:"display_name"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
}

// ClientList decodes a JSON array of clients from a single variable.
type ClientList []clients.Client

func (l *ClientList) UnmarshalText(text []byte) error {
	var list []clients.Client
	if err := json.Unmarshal(text, &list); err != nil {
		return fmt.Errorf("decode clients: %w", err)
	}
	for i, c := range list {
		if c.ID == "" || c.Secret == "" || len(c.RedirectURIs) == 0 {
			return fmt.Errorf("client %d: client_id, client_secret and redirect_uris are required", i)
		}
	}
	*l = list
	return nil
}

// UserList decodes a JSON array of users from a single variable.
type UserList []BootstrapUser

func (l *UserList) UnmarshalText(text []byte) error {
	var list []BootstrapUser
	if err := json.Unmarshal(text, &list); err != nil {
		return fmt.Errorf("decode users: %w", err)
	}
	for i, u := range list {
		if u.Nickname == "" || (u.Password == "" && u.PasswordHash == "") {
			return fmt.Errorf("user %d: nickname and a password or password_hash are required", i)
		}
	}
	*l = list
	return nil
}

type Bootstrap struct {
	Clients ClientList `env:"CLIENTS"`
	Users   UserList   `env:"USERS"`
}

var _ BootstrapConfig = Bootstrap{}

func (b Bootstrap) GetClients() []clients.Client {
	return append([]clients.Client(nil), b.Clients...)
}

func (b Bootstrap) GetUsers() []BootstrapUser {
	return append([]BootstrapUser(nil), b.Users...)
}
