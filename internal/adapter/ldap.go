package adapter

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/h2hsecure/moodlews/internal/domain"
)

var directoryAttributes = []string{"uid", "givenName", "sn", "mail", "employeeNumber", "preferredLanguage"}

type LdapAdapter struct {
	config domain.DirectoryConfig
}

func NewLdapAdapter(config *domain.Config) domain.Directory {
	return &LdapAdapter{config: config.Directory}
}

// LookupUser searches the directory for exactly one entry matching username
// and maps it to a site user record authenticating against the directory.
func (a *LdapAdapter) LookupUser(ctx context.Context, username string) (domain.NewUser, error) {
	conn, err := a.connect()
	if err != nil {
		return domain.NewUser{}, fmt.Errorf("ldap connect: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	searchRequest := ldap.NewSearchRequest(
		a.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 0, false,
		UserFilter(a.config.Filter, username),
		directoryAttributes,
		nil,
	)

	searchResp, err := conn.Search(searchRequest)
	if err != nil {
		log.Warn().Err(err).Str("user", username).Msg("ldap search failed")
		return domain.NewUser{}, fmt.Errorf("ldap search: %w", err)
	}

	switch len(searchResp.Entries) {
	case 0:
		return domain.NewUser{}, fmt.Errorf("directory user %s: %w", username, domain.ErrNotFound)
	case 1:
	default:
		return domain.NewUser{}, fmt.Errorf("directory user %s: %d entries found", username, len(searchResp.Entries))
	}

	return NewUserFromEntry(searchResp.Entries[0], username, a.config.Auth), nil
}

// UserFilter fills the configured filter with the escaped username.
func UserFilter(filter, username string) string {
	if filter == "" {
		filter = domain.DefaultDirectoryFilter
	}
	return fmt.Sprintf(filter, ldap.EscapeFilter(username))
}

func NewUserFromEntry(entry *ldap.Entry, username, auth string) domain.NewUser {
	if uid := entry.GetAttributeValue("uid"); uid != "" {
		username = uid
	}

	user := domain.NewUser{
		Username:  username,
		FirstName: entry.GetAttributeValue("givenName"),
		LastName:  entry.GetAttributeValue("sn"),
		Email:     entry.GetAttributeValue("mail"),
		IDNumber:  attribute(entry, "employeeNumber"),
		Lang:      attribute(entry, "preferredLanguage"),
	}
	if auth != "" {
		user.Auth = lo.ToPtr(auth)
	}

	return user
}

// attribute is nil when the entry lacks the attribute.
func attribute(entry *ldap.Entry, name string) *string {
	if values := entry.GetAttributeValues(name); len(values) > 0 {
		return lo.ToPtr(values[0])
	}
	return nil
}

func (a *LdapAdapter) connect() (*ldap.Conn, error) {
	conn, err := ldap.DialURL(a.config.URL)
	if err != nil {
		log.Warn().Err(err).Str("url", a.config.URL).Msg("ldap connection failed")
		return nil, err
	}

	if a.config.BindDN == "" {
		return conn, nil
	}

	if err := conn.Bind(a.config.BindDN, a.config.BindPassword); err != nil {
		conn.Close() //nolint:errcheck
		log.Warn().Err(err).Str("bind", a.config.BindDN).Msg("ldap bind failed")
		return nil, err
	}

	return conn, nil
}
