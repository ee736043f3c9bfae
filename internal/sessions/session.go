package sessions

import "time"

// Session is a refresh session of the service. ProviderRefresh keeps the
// identity provider's own session so logout can end both.
type Session struct {
	ID              string    `bson:"_id,omitempty" json:"id,omitempty"`
	RefreshToken    string    `bson:"refreshToken" json:"refreshToken"`
	UID             string    `bson:"uid" json:"uid"`
	ProviderRefresh string    `bson:"providerRefresh,omitempty" json:"providerRefresh,omitempty"`
	ExpiresAt       time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}
