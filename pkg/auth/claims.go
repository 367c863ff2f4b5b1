package auth

import (
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	// Subject identifies the operator or upstream system.
	Subject string
	Role    enums.OperatorRole
	JTI     string
}

// AccessTokenClaims represents the typed JWT presented by operators and the order store.
type AccessTokenClaims struct {
	Role enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}
