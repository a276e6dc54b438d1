package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vedsharma/apibench/internal/errors"
	"github.com/vedsharma/apibench/internal/model"
)

var (
	headers []string
	params  []string
	data    string
)

func init() {
	requestCmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"req"},
		Short:   "Manage saved requests",
	}

	addCmd := &cobra.Command{
		Use:   "add <collection-id> <name> <method> <url>",
		Short: "Save a new request into a collection",
		Long: `Save a new request into a collection.

Example:
  apibench request add <collection-id> "Create user" POST https://api.example.com/users \
    -H "Content-Type: application/json" -d '{"name": "Ada"}'
  apibench request add <collection-id> "Person" GET starwars/people/1 -q format=json`,
		Args: cobra.ExactArgs(4),
		Run:  runRequestAdd,
	}
	addEditorFlags(addCmd)

	editCmd := &cobra.Command{
		Use:   "edit <request-id>",
		Short: "Change fields of a saved request",
		Long: `Change fields of a saved request. Only the flags given are written;
-H and -q replace the whole header or parameter list.`,
		Args: cobra.ExactArgs(1),
		Run:  runRequestEdit,
	}
	addEditorFlags(editCmd)
	editCmd.Flags().String("name", "", "New name")
	editCmd.Flags().StringP("method", "X", "", "New method")
	editCmd.Flags().String("url", "", "New URL")

	showCmd := &cobra.Command{
		Use:   "show <request-id>",
		Short: "Show a saved request",
		Args:  cobra.ExactArgs(1),
		Run:   runRequestShow,
	}

	listCmd := &cobra.Command{
		Use:   "list <collection-id>",
		Short: "List the requests in a collection",
		Args:  cobra.ExactArgs(1),
		Run:   runRequestList,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <request-id>",
		Short: "Delete a saved request",
		Args:  cobra.ExactArgs(1),
		Run:   runRequestDelete,
	}

	requestCmd.AddCommand(addCmd, editCmd, showCmd, listCmd, deleteCmd)
	rootCmd.AddCommand(requestCmd)
}

func addEditorFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Add header as key:value (can be used multiple times)")
	cmd.Flags().StringArrayVarP(&params, "query", "q", []string{}, "Add query parameter as key=value (can be used multiple times)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body (JSON string or @filename)")
}

func runRequestAdd(cmd *cobra.Command, args []string) {
	a := current

	method, err := model.ParseMethod(args[2])
	if err != nil {
		a.fatal("Invalid method", err)
	}
	body := bodyFromFlag(a)

	in := model.RequestInput{
		Name:       args[1],
		Method:     method,
		URL:        args[3],
		Body:       body,
		Headers:    encodeFlagRows(headers, ":"),
		Parameters: encodeFlagRows(params, "="),
	}

	def, err := a.store.AddRequestToCollection(context.Background(), args[0], in)
	if err != nil {
		a.fatal("Failed to save request", err)
	}
	a.printer.PrintSuccess(fmt.Sprintf("Saved '%s' (%s)", def.Name, def.ID))
}

func runRequestEdit(cmd *cobra.Command, args []string) {
	a := current
	flags := cmd.Flags()

	var update model.RequestUpdate
	if flags.Changed("name") {
		name, _ := flags.GetString("name")
		update.Name = &name
	}
	if flags.Changed("method") {
		raw, _ := flags.GetString("method")
		method, err := model.ParseMethod(raw)
		if err != nil {
			a.fatal("Invalid method", err)
		}
		update.Method = &method
	}
	if flags.Changed("url") {
		url, _ := flags.GetString("url")
		update.URL = &url
	}
	if flags.Changed("header") {
		update.Headers = model.StringPtr(encodeFlagRows(headers, ":"))
	}
	if flags.Changed("query") {
		update.Parameters = model.StringPtr(encodeFlagRows(params, "="))
	}
	if flags.Changed("data") {
		update.Body = model.StringPtr(bodyFromFlag(a))
	}

	if update.IsEmpty() {
		a.fatal("Nothing to change: pass at least one of --name, --method, --url, -H, -q, -d", nil)
	}

	def, err := a.store.UpdateRequest(context.Background(), args[0], update)
	if err != nil {
		a.fatal("Failed to update request", err)
	}
	a.printer.PrintSuccess(fmt.Sprintf("Updated '%s'", def.Name))
}

func runRequestShow(cmd *cobra.Command, args []string) {
	a := current

	def, err := a.store.FindRequest(context.Background(), args[0])
	if err != nil {
		a.fatal("Failed to load request", err)
	}
	if def == nil {
		a.fatal(fmt.Sprintf("Request with id %s not found", args[0]), nil)
	}
	a.printer.PrintRequest(def)
}

func runRequestList(cmd *cobra.Command, args []string) {
	a := current

	requests, err := a.store.ListRequests(context.Background(), args[0])
	if err != nil {
		a.fatal("Failed to list requests", err)
	}
	a.printer.PrintRequestList(requests)
}

func runRequestDelete(cmd *cobra.Command, args []string) {
	a := current

	if err := a.store.DeleteRequest(context.Background(), args[0]); err != nil {
		a.fatal("Failed to delete request", err)
	}
	a.printer.PrintSuccess(fmt.Sprintf("Deleted request %s", args[0]))
}

// encodeFlagRows turns repeated key<sep>value flags into the stored editor
// rows, or "" when none were given
func encodeFlagRows(pairs []string, sep string) string {
	rows := model.ParseKeyValueFlags(pairs, sep)
	if len(rows) == 0 {
		return ""
	}
	return rows.Encode()
}

// bodyFromFlag resolves -d, reading the file when it is prefixed with @
func bodyFromFlag(a *app) string {
	body := data
	if strings.HasPrefix(body, "@") {
		content, err := readBodyFromFile(strings.TrimPrefix(body, "@"))
		if err != nil {
			a.fatal("Failed to read file", err)
		}
		body = content
	}
	warnIfSensitiveBody(os.Stderr, body)
	return body
}

// readBodyFromFile reads file content with path validation to prevent directory traversal
func readBodyFromFile(filename string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "failed to get working directory")
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return "", errors.Wrap(err, "invalid file path")
	}
	cleanPath := filepath.Clean(absPath)

	if !within(wd, cleanPath) {
		return "", errors.New("access denied: file must be within current directory")
	}

	// A symlink inside the directory may still point outside it
	realPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", errors.Wrap(err, "failed to resolve path")
		}
		realPath = cleanPath
	} else if !within(wd, realPath) {
		return "", errors.New("access denied: symlink target must be within current directory")
	}

	content, err := os.ReadFile(realPath)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func within(dir, path string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

// sensitiveBodyPatterns suggest credentials in a request body
var sensitiveBodyPatterns = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey",
	"private_key", "privatekey",
	"credit_card", "creditcard", "card_number",
	"ssn", "social_security",
	"access_token", "refresh_token",
	"client_secret", "auth",
}

// warnIfSensitiveBody warns on w when a body about to be saved looks like it
// carries credentials
func warnIfSensitiveBody(w io.Writer, body string) {
	if body == "" {
		return
	}

	lowerBody := strings.ToLower(body)
	for _, pattern := range sensitiveBodyPatterns {
		if strings.Contains(lowerBody, pattern) {
			fmt.Fprintln(w, "WARNING: Request body may contain sensitive data (e.g., passwords, tokens).")
			fmt.Fprintln(w, "         It is stored in plain text with the saved request.")
			return
		}
	}
}
