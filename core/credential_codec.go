package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	TokenPayloadFormatJSONV1 = "token_pair_json"
	TokenPayloadVersionV1    = 1
)

// CredentialCodec converts a token pair to and from the persisted payload
// that the secret provider encrypts at rest.
type CredentialCodec interface {
	Format() string
	Version() int
	Encode(tokens TokenPair) ([]byte, error)
	Decode(payload []byte) (TokenPair, error)
}

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return TokenPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return TokenPayloadVersionV1
}

type jsonTokenPayload struct {
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func (JSONCredentialCodec) Encode(tokens TokenPair) ([]byte, error) {
	payload := jsonTokenPayload{
		AccessToken:  strings.TrimSpace(tokens.AccessToken),
		RefreshToken: strings.TrimSpace(tokens.RefreshToken),
		ExpiresAt:    cloneTimePointer(tokens.ExpiresAt),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode token payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (TokenPair, error) {
	if len(payload) == 0 {
		return TokenPair{}, fmt.Errorf("core: token payload is empty")
	}
	decoded := jsonTokenPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return TokenPair{}, fmt.Errorf("core: decode token payload: %w", err)
	}
	return TokenPair{
		AccessToken:  strings.TrimSpace(decoded.AccessToken),
		RefreshToken: strings.TrimSpace(decoded.RefreshToken),
		ExpiresAt:    cloneTimePointer(decoded.ExpiresAt),
	}, nil
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}
