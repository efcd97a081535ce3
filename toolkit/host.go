package toolkit

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/parleyhq/parley/llm"
	"github.com/parleyhq/parley/tool"
)

// Host answers questions about the machine running the conversation: the
// local clock and basic platform facts. Models have no reliable sense of
// either, so grounding them here avoids confidently wrong answers.
type Host struct {
	now func() time.Time
}

// NewHost creates a host tool on the system clock.
func NewHost() *Host {
	return &Host{now: time.Now}
}

// ToolName implements tool.Tool.
func (h *Host) ToolName() string {
	return "Host"
}

// Methods implements tool.Tool.
func (h *Host) Methods() []tool.Method {
	return []tool.Method{
		{
			Name:        "current_time",
			Description: "Report the current local date and time, including weekday, timezone and unix seconds.",
			Schema:      llm.ToolSchema{Type: "object"},
			Invoke:      h.currentTime,
		},
		{
			Name:        "machine_info",
			Description: "Report hostname, operating system, architecture and CPU count of this machine.",
			Schema:      llm.ToolSchema{Type: "object"},
			Invoke:      h.machineInfo,
		},
	}
}

func (h *Host) currentTime(_ context.Context, _ map[string]interface{}, _ *llm.Message) (any, error) {
	t := h.now()
	zone, offset := t.Zone()
	return map[string]any{
		"iso":                t.Format(time.RFC3339),
		"unix":               t.Unix(),
		"weekday":            t.Weekday().String(),
		"timezone":           zone,
		"utc_offset_seconds": offset,
	}, nil
}

func (h *Host) machineInfo(_ context.Context, _ map[string]interface{}, _ *llm.Message) (any, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	workingDir, err := os.Getwd()
	if err != nil {
		workingDir = ""
	}
	return map[string]any{
		"hostname":    hostname,
		"os":          runtime.GOOS,
		"arch":        runtime.GOARCH,
		"cpus":        runtime.NumCPU(),
		"working_dir": workingDir,
	}, nil
}

// LLMState implements tool.StateProvider.
func (h *Host) LLMState() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("Host %s (%s/%s), local time %s.", hostname, runtime.GOOS, runtime.GOARCH, h.now().Format(time.RFC3339))
}
