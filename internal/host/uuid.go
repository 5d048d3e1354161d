package host

import "github.com/google/uuid"

// namespace scopes accessory UUIDs to this bridge so ids never collide with
// UUIDs generated by other plugins for the same string.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/srg/blebridge"))

// GenerateUUID derives a stable accessory UUID from an identifier. The same id
// always yields the same UUID, across processes and restarts.
func GenerateUUID(id string) string {
	return uuid.NewSHA1(namespace, []byte(id)).String()
}
