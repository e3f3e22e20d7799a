package models

// Token is an issued access/refresh token pair. The refresh token is also
// persisted server-side and is valid for a single rotation.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
