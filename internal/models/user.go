package models

// User is the profile record stored at users/{uid}. The uid is issued by the
// identity provider and is not part of the stored value.
type User struct {
	UID       string `json:"uid,omitempty" bson:"-"`
	Username  string `json:"username" bson:"username"`
	Email     string `json:"email" bson:"email"`
	Photo     string `json:"photo,omitempty" bson:"photo,omitempty"` // data URL, see internal/avatar
	CreatedAt int64  `json:"createdAt" bson:"createdAt"`             // Unix milliseconds
}
