package domain

import "strings"

// principalSeparator divides an identity provider prefix from the subject,
// e.g. "google-oauth2|1234".
const principalSeparator = "|"

// ShortOwnerID returns the owner identifier used both as the first storage
// key segment and as the task record partition key: the part of the
// authenticated principal after its last "|". A principal without a
// provider prefix is returned unchanged.
//
// Using the short form on both the CRUD path and the thumbnail path keeps
// the two consistent; the pipeline only ever sees the short form.
func ShortOwnerID(principal string) string {
	if i := strings.LastIndex(principal, principalSeparator); i >= 0 {
		return principal[i+1:]
	}
	return principal
}
