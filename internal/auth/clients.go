package auth

import (
	"crypto/subtle"
	"fmt"
)

// Client is a configured caller identity.
type Client struct {
	ClientID    string   `yaml:"clientId" mapstructure:"client_id"`
	AccessToken string   `yaml:"accessToken" mapstructure:"access_token"`
	Scopes      []string `yaml:"scopes" mapstructure:"scopes"`
}

// Clients resolves bearer tokens to credentials.
type Clients struct {
	clients []Client
}

// NewClients builds a lookup table, rejecting duplicate ids and empty tokens.
func NewClients(clients []Client) (*Clients, error) {
	seen := make(map[string]bool, len(clients))
	for i, c := range clients {
		if c.ClientID == "" {
			return nil, fmt.Errorf("client %d: clientId is required", i)
		}
		if c.AccessToken == "" {
			return nil, fmt.Errorf("client %q: accessToken is required", c.ClientID)
		}
		if seen[c.ClientID] {
			return nil, fmt.Errorf("client %q: duplicate clientId", c.ClientID)
		}
		seen[c.ClientID] = true
	}
	return &Clients{clients: append([]Client(nil), clients...)}, nil
}

// Lookup returns the credentials for token. Tokens are compared in
// constant time.
func (c *Clients) Lookup(token string) (Credentials, bool) {
	if c == nil || token == "" {
		return Credentials{}, false
	}
	for _, cl := range c.clients {
		if subtle.ConstantTimeCompare([]byte(cl.AccessToken), []byte(token)) == 1 {
			return Credentials{
				ClientID: cl.ClientID,
				Scopes:   append([]string(nil), cl.Scopes...),
			}, true
		}
	}
	return Credentials{}, false
}
