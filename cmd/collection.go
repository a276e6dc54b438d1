package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	collectionCmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"col"},
		Short:   "Organize saved requests into collections",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the collections of a workspace",
		Args:  cobra.NoArgs,
		Run:   runCollectionList,
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Long: `Create a new collection. Without --workspace it goes into your
personal workspace, which is created on first use.`,
		Args: cobra.ExactArgs(1),
		Run:  runCollectionCreate,
	}

	renameCmd := &cobra.Command{
		Use:   "rename <collection-id> <name>",
		Short: "Rename a collection",
		Args:  cobra.ExactArgs(2),
		Run:   runCollectionRename,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <collection-id>",
		Short: "Delete a collection and its saved requests",
		Args:  cobra.ExactArgs(1),
		Run:   runCollectionDelete,
	}

	for _, c := range []*cobra.Command{listCmd, createCmd} {
		c.Flags().StringP("workspace", "w", "", "Workspace id (default: your personal workspace)")
	}

	collectionCmd.AddCommand(listCmd, createCmd, renameCmd, deleteCmd)
	rootCmd.AddCommand(collectionCmd)
}

// workspaceID returns --workspace, falling back to the personal workspace
func workspaceID(cmd *cobra.Command, a *app) string {
	if id, _ := cmd.Flags().GetString("workspace"); id != "" {
		return id
	}
	ws, err := a.store.InitializeWorkspace(context.Background(), a.cfg.User.Name)
	if err != nil {
		a.fatal("Failed to initialize workspace", err)
	}
	return ws.ID
}

func runCollectionList(cmd *cobra.Command, args []string) {
	a := current

	collections, err := a.store.ListCollections(context.Background(), workspaceID(cmd, a))
	if err != nil {
		a.fatal("Could not list collections", err)
	}
	a.printer.PrintCollectionList(collections)
}

func runCollectionCreate(cmd *cobra.Command, args []string) {
	a := current

	c, err := a.store.CreateCollection(context.Background(), workspaceID(cmd, a), args[0])
	if err != nil {
		a.fatal("Failed to create collection", err)
	}
	a.printer.PrintSuccess(fmt.Sprintf("Created collection '%s' (%s)", c.Name, c.ID))
}

func runCollectionRename(cmd *cobra.Command, args []string) {
	a := current

	if err := a.store.RenameCollection(context.Background(), args[0], args[1]); err != nil {
		a.fatal("Failed to rename collection", err)
	}
	a.printer.PrintSuccess(fmt.Sprintf("Renamed collection to '%s'", args[1]))
}

func runCollectionDelete(cmd *cobra.Command, args []string) {
	a := current

	if err := a.store.DeleteCollection(context.Background(), args[0]); err != nil {
		a.fatal("Failed to delete collection", err)
	}
	a.printer.PrintSuccess(fmt.Sprintf("Deleted collection %s", args[0]))
}
