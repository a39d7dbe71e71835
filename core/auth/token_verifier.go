package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v4"
)

// ValidatorClaims are the claims carried by a validator's bearer token,
// minted by the surrounding identity product. Sub is the signer identifier
// matched against submitted signatures.
type ValidatorClaims struct {
	Sub     string   `json:"sub"`
	ChainID string   `json:"chainID"`
	Roles   []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenVerifier validates validator bearer tokens presented to the node's
// submission endpoints.
type TokenVerifier struct {
	KeyProvider KeyProvider
	ChainID     string
}

// VerifyToken parses and verifies a token, returning its claims. The token
// must be bound to this chain and carry the validator role.
func (v *TokenVerifier) VerifyToken(tokenString string) (*ValidatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ValidatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return v.KeyProvider.GetPublicKey(kid)
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*ValidatorClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid validator token or claims")
	}
	if v.ChainID != "" && claims.ChainID != v.ChainID {
		return nil, errors.New("token is bound to a different chain")
	}
	if !hasRole(claims.Roles, "validator") {
		return nil, errors.New("token is missing the validator role")
	}
	return claims, nil
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
