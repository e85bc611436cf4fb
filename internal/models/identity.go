package models

// IdentitySource tags which backing store owns an identity. It is set once at
// authentication and carried on every request.
type IdentitySource string

const (
	SourcePrimary IdentitySource = "primary"
	SourceLegacy  IdentitySource = "legacy"
)

func (s IdentitySource) Valid() bool {
	return s == SourcePrimary || s == SourceLegacy
}

// Identity is the authenticated caller as resolved by the auth middleware.
type Identity struct {
	Key    string
	Email  string
	Name   string
	Source IdentitySource
}

// ResolvedIdentity is an identity routed to its store with a normalized key.
type ResolvedIdentity struct {
	Store IdentitySource
	Key   string
	Email string
	Name  string
}
