package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/template"
	"github.com/opsdeck/opsdeck/pkg/testutil"
)

func TestExpandEnv(t *testing.T) {
	t.Parallel()

	envs := []*models.Action{
		testutil.CreateTestAction(testutil.WithEnvKind("HOST", "db.internal")),
		testutil.CreateTestAction(testutil.WithEnvKind("PORT", "5432")),
	}

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "single placeholder",
			content:  "pg_dump -h ${HOST}",
			expected: "pg_dump -h db.internal",
		},
		{
			name:     "multiple placeholders",
			content:  "psql -h ${HOST} -p ${PORT}",
			expected: "psql -h db.internal -p 5432",
		},
		{
			name:     "repeated placeholder",
			content:  "${HOST} ${HOST}",
			expected: "db.internal db.internal",
		},
		{
			name:     "unknown placeholder left verbatim",
			content:  "curl ${MISSING}/status",
			expected: "curl ${MISSING}/status",
		},
		{
			name:     "no placeholders",
			content:  "uptime",
			expected: "uptime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, template.ExpandEnv(tt.content, envs))
		})
	}
}

func TestExpandEnvSkipsNonEnvActions(t *testing.T) {
	t.Parallel()

	envs := []*models.Action{
		testutil.CreateTestAction(testutil.WithName("HOST"), testutil.WithContent("not-a-value")),
	}

	assert.Equal(t, "ping ${HOST}", template.ExpandEnv("ping ${HOST}", envs))
}

func TestExpandEnvSinglePass(t *testing.T) {
	t.Parallel()

	// An env value containing another placeholder is not re-expanded by an
	// env that was already applied.
	envs := []*models.Action{
		testutil.CreateTestAction(testutil.WithEnvKind("A", "alpha")),
		testutil.CreateTestAction(testutil.WithEnvKind("B", "${A}")),
	}

	assert.Equal(t, "alpha ${A}", template.ExpandEnv("${A} ${B}", envs))
}
