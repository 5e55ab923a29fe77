// Package template expands environment action values into action content.
package template

import (
	"strings"

	"github.com/opsdeck/opsdeck/pkg/models"
)

// ExpandEnv replaces every literal occurrence of ${NAME} in content with the
// value of the env-kind action named NAME. Substitution is plain text, one
// pass per env action in registry order; values are not re-expanded against
// envs that were already applied.
func ExpandEnv(content string, envs []*models.Action) string {
	for _, env := range envs {
		if env.Kind != models.ActionKindEnv {
			continue
		}

		content = strings.ReplaceAll(content, "${"+env.Name+"}", env.Content)
	}

	return content
}
