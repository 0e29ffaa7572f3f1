// Package docid provides a deterministic index document ID for a content item.
package docid

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// namespace scopes name-based UUIDs so they never collide with other v5 users.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("searchsync:document"))

// For returns a stable document ID for the content item contentID of tenant.
// The same pair always yields the same ID; different content IDs within a tenant never share one.
func For(tenantID int, contentID string) string {
	name := strconv.Itoa(tenantID) + ":" + strings.TrimSpace(contentID)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}
