package domain

// Profile is the identity asserted by an upstream provider after successful verification.
type Profile struct {
	Provider      IdentityProvider
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	PictureURL    string
}

type IdentityProvider string

const (
	IdentityProviderOIDC   IdentityProvider = "oidc"
	IdentityProviderGoogle IdentityProvider = "google"
	IdentityProviderDev    IdentityProvider = "dev"
)

// ExternalID returns the provider-scoped subject used to link a profile to a user record.
func (p Profile) ExternalID() string {
	return string(p.Provider) + ":" + p.Subject
}
