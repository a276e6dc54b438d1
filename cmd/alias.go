package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	aliasCmd := &cobra.Command{
		Use:     "alias",
		Aliases: []string{"a"},
		Short:   "Manage URL aliases",
		Long: `Aliases name base URLs so saved requests can use short URLs.

A saved request whose URL is 'starwars/people/1' runs against
'https://www.swapi.tech/api/people/1' once the starwars alias exists.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored aliases",
		Run:   runAliasList,
	}

	createCmd := &cobra.Command{
		Use:   "create <name> <url>",
		Short: "Create or replace an alias",
		Long: `Create or replace an alias for a base URL.

Example:
  apibench alias create starwars https://www.swapi.tech/api
  apibench request add <collection-id> "Luke" GET starwars/people/1`,
		Args: cobra.ExactArgs(2),
		Run:  runAliasCreate,
	}

	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print the base URL behind an alias",
		Args:  cobra.ExactArgs(1),
		Run:   runAliasShow,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove an alias",
		Args:  cobra.ExactArgs(1),
		Run:   runAliasDelete,
	}

	aliasCmd.AddCommand(listCmd, createCmd, showCmd, deleteCmd)
	rootCmd.AddCommand(aliasCmd)
}

func runAliasList(cmd *cobra.Command, args []string) {
	a := current

	aliases, err := a.store.ListAliases(context.Background())
	if err != nil {
		a.fatal("Could not list aliases", err)
	}
	a.printer.PrintAliasList(aliases)
}

func runAliasCreate(cmd *cobra.Command, args []string) {
	a := current

	if err := a.store.CreateAlias(context.Background(), args[0], args[1]); err != nil {
		a.fatal("Could not save alias", err)
	}
	a.printer.PrintSuccess(fmt.Sprintf("Alias '%s' now points to %s", args[0], args[1]))
}

func runAliasShow(cmd *cobra.Command, args []string) {
	a := current

	url, exists, err := a.store.GetAlias(context.Background(), args[0])
	if err != nil {
		a.fatal("Failed to load alias", err)
	}
	if !exists {
		a.fatal(fmt.Sprintf("Alias '%s' not found", args[0]), nil)
	}
	a.printer.PrintAlias(args[0], url)
}

func runAliasDelete(cmd *cobra.Command, args []string) {
	a := current

	if err := a.store.DeleteAlias(context.Background(), args[0]); err != nil {
		a.fatal("Could not remove alias", err)
	}
	a.printer.PrintSuccess(fmt.Sprintf("Removed alias '%s'", args[0]))
}
