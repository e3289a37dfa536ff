package config

import (
	"fmt"
	neturl "net/url"
	"sort"
	"strings"
)

// DSNValue builds the gorm MySQL DSN from the database section. Charset,
// parseTime and loc get sensible defaults unless the config overrides them
// through params.
func (c *AppConfig) DSNValue() string {
	params := neturl.Values{}
	params.Set("charset", "utf8mb4")
	params.Set("parseTime", "True")
	params.Set("loc", "Local")
	for k, v := range c.Database.Params {
		params.Set(k, v)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var query strings.Builder
	for i, k := range keys {
		if i > 0 {
			query.WriteByte('&')
		}
		query.WriteString(k)
		query.WriteByte('=')
		query.WriteString(neturl.QueryEscape(params.Get(k)))
	}

	auth := c.Database.User
	if c.Database.Password != "" {
		auth += ":" + c.Database.Password
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s",
		auth, c.Database.Host, c.Database.Port, c.Database.Name, query.String())
}

// URLValue builds the redis connection URL, using rediss:// when TLS is on.
func (c *AppConfig) URLValue() string {
	scheme := "redis"
	if c.Redis.TLS {
		scheme = "rediss"
	}
	u := neturl.URL{
		Scheme: scheme,
		Host:   fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port),
		Path:   fmt.Sprintf("/%d", c.Redis.DB),
	}
	if c.Redis.Password != "" {
		u.User = neturl.UserPassword("", c.Redis.Password)
	}
	return u.String()
}
