package gateway

import (
	"fmt"

	"github.com/goliatone/go-square/core"
)

const (
	productionBaseURL = "https://connect.squareup.com"
	sandboxBaseURL    = "https://connect.squareupsandbox.com"
)

// BaseURL resolves the Connect host for an environment.
func BaseURL(env core.Environment) (string, error) {
	switch env {
	case core.EnvironmentProduction:
		return productionBaseURL, nil
	case core.EnvironmentSandbox:
		return sandboxBaseURL, nil
	}
	return "", fmt.Errorf("gateway: unknown environment %q: %w", string(env), core.ErrInvalidEnvironment)
}
