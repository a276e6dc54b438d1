package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/fatih/color"

	"github.com/vedsharma/apibench/internal/execution"
	"github.com/vedsharma/apibench/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// sanitizeOutput removes or escapes potentially dangerous control characters
// that could manipulate terminal display or execute commands
func sanitizeOutput(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			result.WriteRune(r)
		case r == '\x1b':
			// Keep ANSI sequences from the server visible instead of interpreted
			result.WriteString("\\x1b")
		case unicode.IsControl(r) && r < 0x20:
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		case r == 0x7F:
			result.WriteString("\\x7f")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

var (
	successColor   = color.New(color.FgGreen, color.Bold)
	redirectColor  = color.New(color.FgYellow, color.Bold)
	clientErrColor = color.New(color.FgRed, color.Bold)
	serverErrColor = color.New(color.FgRed, color.Bold, color.BgWhite)
	failedColor    = color.New(color.FgRed, color.Bold)
	headerKeyColor = color.New(color.FgCyan)
	methodColor    = color.New(color.FgMagenta, color.Bold)
	urlColor       = color.New(color.FgBlue)
	dimColor       = color.New(color.Faint)
)

// Printer renders results and records to a terminal. It is an
// execution.Sink.
type Printer struct {
	out         io.Writer
	ShowHeaders bool
	// Redact masks credential-bearing header values
	Redact bool
}

// NewPrinter creates a Printer writing to out, or stdout when out is nil
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out, Redact: true}
}

// Publish prints r
func (p *Printer) Publish(r execution.Result) {
	p.PrintResult(r)
}

// PrintResult prints either variant of a run result
func (p *Printer) PrintResult(r execution.Result) {
	switch res := r.(type) {
	case *execution.Succeeded:
		out := res.Outcome
		getStatusColor(out.Status).Fprintf(p.out, "%s\n", sanitizeOutput(statusLine(out.Status, out.StatusText)))
		dimColor.Fprintf(p.out, "  Time: %dms  Size: %s\n", out.DurationMs, humanSize(out.SizeBytes))
		if res.Run != nil {
			dimColor.Fprintf(p.out, "  Run: %s\n", res.Run.ID)
		}
		fmt.Fprintln(p.out)
		if p.ShowHeaders {
			p.printHeaders(out.Headers)
		}
		p.printBody(out.Data.String())

	case *execution.Failed:
		p.PrintError(res.Error)
		if res.Run != nil {
			dimColor.Fprintf(p.out, "  Run: %s (recorded, %dms)\n", res.Run.ID, res.Run.DurationMs)
		} else {
			dimColor.Fprintln(p.out, "  No run recorded")
		}
	}
}

// PrintRun prints one stored run in full
func (p *Printer) PrintRun(run *model.RunRecord) {
	if run.Dispatched() {
		getStatusColor(run.Status).Fprintf(p.out, "%s\n", sanitizeOutput(statusLine(run.Status, run.StatusLabel())))
	} else {
		failedColor.Fprintf(p.out, "%s\n", sanitizeOutput(run.StatusLabel()))
	}
	dimColor.Fprintf(p.out, "  ID: %s\n", run.ID)
	dimColor.Fprintf(p.out, "  Request: %s\n", run.RequestID)
	dimColor.Fprintf(p.out, "  Time: %s (%dms)\n\n", run.CreatedAt.Local().Format(timeLayout), run.DurationMs)

	if p.ShowHeaders {
		headers, err := model.DecodeHeaderMap(run.Headers)
		if err == nil {
			p.printHeaders(headers)
		}
	}
	p.printBody(run.Body)
}

// PrintRunList prints runs in a compact format, newest first
func (p *Printer) PrintRunList(runs []model.RunRecord) {
	if len(runs) == 0 {
		dimColor.Fprintln(p.out, "No runs recorded")
		return
	}

	for i, run := range runs {
		dimColor.Fprintf(p.out, "[%d] ", i+1)
		if run.Dispatched() {
			getStatusColor(run.Status).Fprintf(p.out, "%d ", run.Status)
		} else {
			failedColor.Fprint(p.out, "ERR ")
		}
		dimColor.Fprintf(p.out, "%-6s ", fmt.Sprintf("%dms", run.DurationMs))
		dimColor.Fprintf(p.out, "%s  ", run.CreatedAt.Local().Format(timeLayout))
		fmt.Fprintln(p.out, run.ID)
	}
}

// PrintRequest prints a saved request definition
func (p *Printer) PrintRequest(def *model.RequestDefinition) {
	methodColor.Fprintf(p.out, "%s ", def.Method)
	urlColor.Fprintln(p.out, sanitizeOutput(def.URL))
	dimColor.Fprintf(p.out, "  Name: %s\n", sanitizeOutput(def.Name))
	dimColor.Fprintf(p.out, "  ID: %s\n", def.ID)
	dimColor.Fprintf(p.out, "  Collection: %s\n", def.CollectionID)
	dimColor.Fprintf(p.out, "  Updated: %s\n\n", def.UpdatedAt.Local().Format(timeLayout))

	if kvs, err := model.DecodeKeyValues(def.Headers); err == nil && len(kvs.Active()) > 0 {
		p.printHeaders(kvs.Map())
	}
	if kvs, err := model.DecodeKeyValues(def.Parameters); err == nil && len(kvs.Active()) > 0 {
		fmt.Fprintln(p.out, "Query:")
		for _, kv := range kvs.Active() {
			headerKeyColor.Fprintf(p.out, "  %s=", sanitizeOutput(kv.Key))
			fmt.Fprintln(p.out, sanitizeOutput(kv.Value))
		}
		fmt.Fprintln(p.out)
	}
	if def.Body != "" {
		fmt.Fprintln(p.out, "Body:")
		fmt.Fprintln(p.out, sanitizeOutput(prettyJSON(def.Body)))
		fmt.Fprintln(p.out)
	}
	if def.Response != "" {
		fmt.Fprintln(p.out, "Last response:")
		fmt.Fprintln(p.out, strings.Repeat("-", 40))
		p.printBody(def.Response)
	}
}

// PrintRequestList prints the requests of a collection
func (p *Printer) PrintRequestList(requests []model.RequestDefinition) {
	if len(requests) == 0 {
		dimColor.Fprintln(p.out, "Collection is empty")
		return
	}

	for i, req := range requests {
		dimColor.Fprintf(p.out, "[%d] ", i+1)
		methodColor.Fprintf(p.out, "%-7s ", req.Method)

		url := req.URL
		if len(url) > 60 {
			url = url[:57] + "..."
		}
		urlColor.Fprintf(p.out, "%-60s ", sanitizeOutput(url))
		fmt.Fprintf(p.out, "%s ", sanitizeOutput(req.Name))
		dimColor.Fprintf(p.out, "(%s)\n", req.ID)
	}
}

// PrintWorkspaceList prints workspaces
func (p *Printer) PrintWorkspaceList(workspaces []model.Workspace) {
	if len(workspaces) == 0 {
		dimColor.Fprintln(p.out, "No workspaces found")
		return
	}

	fmt.Fprintln(p.out, "Workspaces:")
	for _, ws := range workspaces {
		headerKeyColor.Fprintf(p.out, "  %s ", sanitizeOutput(ws.Name))
		dimColor.Fprintf(p.out, "(%s)\n", ws.ID)
	}
}

// PrintCollectionList prints collections
func (p *Printer) PrintCollectionList(collections []model.Collection) {
	if len(collections) == 0 {
		dimColor.Fprintln(p.out, "No collections found")
		return
	}

	fmt.Fprintln(p.out, "Collections:")
	for _, c := range collections {
		headerKeyColor.Fprintf(p.out, "  %s ", sanitizeOutput(c.Name))
		dimColor.Fprintf(p.out, "(%s)\n", c.ID)
	}
}

// PrintAliasList prints a list of aliases
func (p *Printer) PrintAliasList(aliases []model.Alias) {
	if len(aliases) == 0 {
		dimColor.Fprintln(p.out, "No aliases found")
		return
	}

	fmt.Fprintln(p.out, "Aliases:")
	for _, a := range aliases {
		headerKeyColor.Fprintf(p.out, "  %s ", sanitizeOutput(a.Name))
		dimColor.Fprint(p.out, "→ ")
		urlColor.Fprintln(p.out, sanitizeOutput(a.URL))
	}
}

// PrintAlias prints a single alias
func (p *Printer) PrintAlias(name, url string) {
	headerKeyColor.Fprintf(p.out, "%s ", sanitizeOutput(name))
	dimColor.Fprint(p.out, "→ ")
	urlColor.Fprintln(p.out, sanitizeOutput(url))
}

// PrintJSON writes v as indented JSON
func (p *Printer) PrintJSON(v interface{}) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(msg string) {
	successColor.Fprintf(p.out, "✓ %s\n", sanitizeOutput(msg))
}

// PrintError prints an error message
func (p *Printer) PrintError(msg string) {
	clientErrColor.Fprintf(p.out, "✗ %s\n", sanitizeOutput(msg))
}

func getStatusColor(code int) *color.Color {
	switch {
	case code >= 200 && code < 300:
		return successColor
	case code >= 300 && code < 400:
		return redirectColor
	case code >= 400 && code < 500:
		return clientErrColor
	default:
		return serverErrColor
	}
}

func statusLine(code int, text string) string {
	if text == "" {
		return fmt.Sprintf("%d", code)
	}
	return fmt.Sprintf("%d %s", code, text)
}

func (p *Printer) printHeaders(headers map[string]string) {
	if len(headers) == 0 {
		return
	}
	if p.Redact {
		headers = RedactHeaders(headers)
	}

	fmt.Fprintln(p.out, "Headers:")

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		headerKeyColor.Fprintf(p.out, "  %s: ", sanitizeOutput(key))
		fmt.Fprintln(p.out, sanitizeOutput(headers[key]))
	}
	fmt.Fprintln(p.out)
}

func (p *Printer) printBody(body string) {
	if body == "" {
		dimColor.Fprintln(p.out, "(empty body)")
		return
	}
	fmt.Fprintln(p.out, sanitizeOutput(prettyJSON(body)))
}

func prettyJSON(s string) string {
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(s), "", "  "); err != nil {
		return s
	}
	return out.String()
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
