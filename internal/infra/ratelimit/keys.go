package ratelimit

import "fmt"

// IdentityKey scopes a limit to one identity and route.
func IdentityKey(identityID, route string) string {
	return fmt.Sprintf("identity:%s:endpoint:%s", identityID, route)
}

// ClientKey scopes a limit to a client address, for routes that carry
// no identity in the path.
func ClientKey(addr, route string) string {
	return fmt.Sprintf("ip:%s:endpoint:%s", addr, route)
}
