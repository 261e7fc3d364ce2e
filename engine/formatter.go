package engine

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
)

// ExecutionFormatter receives per-node progress for interactive output,
// such as when running a workflow from the command line.
type ExecutionFormatter interface {
	PrintNodeStart(nodeID, nodeType string)
	PrintNodeOutput(nodeID string, data map[string]any)
	PrintNodeError(nodeID string, err error)
	PrintExecutionDone(executionID, status string, err error)
}

// ConsoleFormatter writes colorized execution progress to a writer.
type ConsoleFormatter struct {
	w io.Writer
}

// NewConsoleFormatter returns a formatter writing to stdout.
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{w: os.Stdout}
}

// NewConsoleFormatterWithWriter returns a formatter writing to w.
func NewConsoleFormatterWithWriter(w io.Writer) *ConsoleFormatter {
	return &ConsoleFormatter{w: w}
}

func (f *ConsoleFormatter) PrintNodeStart(nodeID, nodeType string) {
	fmt.Fprintf(f.w, "%s %s (%s)\n",
		color.CyanString("▶"), color.New(color.Bold).Sprint(nodeID), nodeType)
}

func (f *ConsoleFormatter) PrintNodeOutput(nodeID string, data map[string]any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(f.w, "    %s: %v\n", color.HiBlackString(k), data[k])
	}
}

func (f *ConsoleFormatter) PrintNodeError(nodeID string, err error) {
	fmt.Fprintf(f.w, "%s %s: %s\n",
		color.RedString("✗"), nodeID, color.RedString(err.Error()))
}

func (f *ConsoleFormatter) PrintExecutionDone(executionID, status string, err error) {
	if err != nil {
		fmt.Fprintf(f.w, "%s execution %s %s\n",
			color.RedString("✗"), executionID, color.RedString(status))
		return
	}
	fmt.Fprintf(f.w, "%s execution %s %s\n",
		color.GreenString("✔"), executionID, color.GreenString(status))
}
