package doctor

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/crmon/internal/layout"
)

// LayoutCheck verifies the layout hint file can be opened. Hints are best
// effort, so problems are warnings.
type LayoutCheck struct {
	Path string
}

func (c *LayoutCheck) Name() string     { return "layout_file" }
func (c *LayoutCheck) Category() string { return CategoryLayout }

func (c *LayoutCheck) Run(context.Context) CheckResult {
	st, err := layout.Open(c.Path)
	if err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Layout file %s can't be opened", c.Path),
			Suggestion: "Close other crmon processes or set layout.path",
		}
	}
	hosts, err := st.Hosts()
	st.Close() //nolint:errcheck // Read-only use
	if err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Layout file %s is unreadable: %v", c.Path, err),
			Suggestion: "Move the file aside; crmon recreates it",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("Layout file: %s (%d host%s)", c.Path, len(hosts), pluralize(len(hosts))),
	}
}
