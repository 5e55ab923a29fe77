// Package synthesizer produces mock execution results for registered
// actions. It stands in for a real execution backend; a real integration
// would add a failure channel that the queue maps onto FAILURE records.
package synthesizer

import (
	"fmt"
	"hash/fnv"

	"github.com/opsdeck/opsdeck/pkg/models"
)

// Result is the synthesized outcome of executing one substituted action.
type Result struct {
	OutputText string
	Status     models.ExecutionStatus
	ReturnCode int
	Summary    string
	DurationMs int64
}

// Synthesizer turns a substituted action into a result. Implementations
// must be pure: same action in, same result out.
type Synthesizer interface {
	Synthesize(action *models.Action, substituted string) Result
}

// Mock is the default synthesizer. Output varies per action but is fully
// determined by the action id and substituted content.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Synthesize(action *models.Action, substituted string) Result {
	seed := hashOf(action.ID + "\x00" + substituted)
	durationMs := int64(120 + seed%880)

	switch action.Kind {
	case models.ActionKindAPI:
		return Result{
			OutputText: fmt.Sprintf(
				"{\n  \"code\": 200,\n  \"message\": \"ok\",\n  \"request_id\": \"req-%08x\",\n  \"data\": {\n    \"action\": %q,\n    \"elapsed_ms\": %d\n  }\n}",
				seed, action.Name, durationMs),
			Status:     models.ExecutionStatusSuccess,
			ReturnCode: 200,
			Summary:    fmt.Sprintf("HTTP 200 in %dms", durationMs),
			DurationMs: durationMs,
		}
	case models.ActionKindScript:
		return Result{
			OutputText: fmt.Sprintf(
				"+ %s\nrun id: job-%08x\n... done\nexit status 0",
				action.Name, seed),
			Status:     models.ExecutionStatusSuccess,
			ReturnCode: 0,
			Summary:    fmt.Sprintf("exit 0 in %dms", durationMs),
			DurationMs: durationMs,
		}
	default:
		// Env actions never reach the queue; answering anyway keeps the
		// synthesizer total.
		return Result{
			OutputText: substituted,
			Status:     models.ExecutionStatusSuccess,
			ReturnCode: 0,
			Summary:    "value",
			DurationMs: durationMs,
		}
	}
}

func hashOf(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))

	return h.Sum32()
}
