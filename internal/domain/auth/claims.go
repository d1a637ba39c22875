package auth

// DecodedClaims represents the claims extracted from a verified identity token
type DecodedClaims struct {
	SubjectID     string         `json:"sub"`            // Identity provider subject ID
	Email         string         `json:"email"`          // User email
	DisplayName   string         `json:"name"`           // Full name
	PictureURL    string         `json:"picture"`        // Avatar URL
	EmailVerified bool           `json:"email_verified"` // Email verification status
	IssuedClaims  map[string]any `json:"-"`              // Every claim carried by the token
}

// Claim returns a raw claim from the issued claim set
func (c *DecodedClaims) Claim(key string) (any, bool) {
	if c == nil || c.IssuedClaims == nil {
		return nil, false
	}
	v, ok := c.IssuedClaims[key]
	return v, ok
}
