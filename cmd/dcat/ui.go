package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/dogcat-dev/dogcat/internal/types"
)

var (
	idColor    = color.New(color.FgCyan)
	titleColor = color.New(color.Bold)
	dimColor   = color.New(color.Faint)
	errColor   = color.New(color.FgRed)
)

// statusColors mirror the lifecycle: cold colors for at-rest states,
// warm for active, faint for gone.
var statusColors = map[types.Status]*color.Color{
	types.StatusOpen:       color.New(color.FgGreen),
	types.StatusInProgress: color.New(color.FgYellow),
	types.StatusInReview:   color.New(color.FgMagenta),
	types.StatusBlocked:    color.New(color.FgRed),
	types.StatusDeferred:   color.New(color.FgBlue),
	types.StatusClosed:     color.New(color.Faint),
	types.StatusTombstone:  color.New(color.Faint),
}

func statusColor(s types.Status) *color.Color {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return color.New()
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printIssueLine renders the one-line list form:
//
//	dc-4kzj  [P1] [open]       Fix the flaky lock test
func printIssueLine(issue *types.Issue) {
	fmt.Printf("%s  [P%d] %s %s\n",
		idColor.Sprintf("%-10s", issue.FullID()),
		issue.Priority,
		statusColor(issue.Status).Sprintf("[%-11s]", issue.Status),
		issue.Title,
	)
}

// printIssueDetail renders the full show form.
func printIssueDetail(issue *types.Issue) {
	fmt.Printf("%s %s\n", idColor.Sprint(issue.FullID()), titleColor.Sprint(issue.Title))
	fmt.Printf("  Status:   %s\n", statusColor(issue.Status).Sprint(issue.Status))
	fmt.Printf("  Priority: P%d\n", issue.Priority)
	fmt.Printf("  Type:     %s\n", issue.IssueType)
	if issue.Owner != "" {
		fmt.Printf("  Owner:    %s\n", issue.Owner)
	}
	if issue.Parent != "" {
		fmt.Printf("  Parent:   %s\n", issue.Parent)
	}
	if len(issue.Labels) > 0 {
		fmt.Printf("  Labels:   %s\n", strings.Join(issue.Labels, ", "))
	}
	if issue.ExternalRef != "" {
		fmt.Printf("  Ref:      %s\n", issue.ExternalRef)
	}
	if issue.DuplicateOf != "" {
		fmt.Printf("  Duplicate of: %s\n", issue.DuplicateOf)
	}
	fmt.Printf("  Created:  %s", issue.CreatedAt.Format("2006-01-02 15:04"))
	if issue.CreatedBy != "" {
		fmt.Printf(" by %s", issue.CreatedBy)
	}
	fmt.Println()
	if issue.ClosedAt != nil {
		fmt.Printf("  Closed:   %s", issue.ClosedAt.Format("2006-01-02 15:04"))
		if issue.ClosedBy != "" {
			fmt.Printf(" by %s", issue.ClosedBy)
		}
		if issue.CloseReason != "" {
			fmt.Printf(" (%s)", issue.CloseReason)
		}
		fmt.Println()
	}
	if issue.Description != "" {
		fmt.Printf("\n%s\n", issue.Description)
	}
	for _, section := range []struct{ name, text string }{
		{"Design", issue.Design},
		{"Plan", issue.Plan},
		{"Acceptance", issue.Acceptance},
		{"Notes", issue.Notes},
	} {
		if section.text != "" {
			fmt.Printf("\n%s\n%s\n", titleColor.Sprint(section.name+":"), section.text)
		}
	}
	if len(issue.Comments) > 0 {
		fmt.Printf("\n%s\n", titleColor.Sprint("Comments:"))
		for _, c := range issue.Comments {
			fmt.Printf("  %s %s\n    %s\n",
				dimColor.Sprint(c.CreatedAt.Format("2006-01-02 15:04")),
				c.Author, c.Text)
		}
	}
}

// warnf prints a highlighted warning to stderr.
func warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errColor.Sprint("Warning:"), fmt.Sprintf(format, args...))
}
