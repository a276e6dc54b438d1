package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	workspaceCmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create your personal workspace if it does not exist",
		Args:  cobra.NoArgs,
		Run:   runWorkspaceInit,
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
		Run:   runWorkspaceCreate,
	}
	createCmd.Flags().StringP("description", "d", "", "Workspace description")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List your workspaces",
		Args:  cobra.NoArgs,
		Run:   runWorkspaceList,
	}

	workspaceCmd.AddCommand(initCmd, createCmd, listCmd)
	rootCmd.AddCommand(workspaceCmd)
}

func runWorkspaceInit(cmd *cobra.Command, args []string) {
	a := current

	ws, err := a.store.InitializeWorkspace(context.Background(), a.cfg.User.Name)
	if err != nil {
		a.fatal("Failed to initialize workspace", err)
	}
	a.printer.PrintSuccess(fmt.Sprintf("Workspace '%s' ready (%s)", ws.Name, ws.ID))
}

func runWorkspaceCreate(cmd *cobra.Command, args []string) {
	a := current

	description, _ := cmd.Flags().GetString("description")
	ws, err := a.store.CreateWorkspace(context.Background(), a.cfg.User.Name, args[0], description)
	if err != nil {
		a.fatal("Failed to create workspace", err)
	}
	a.printer.PrintSuccess(fmt.Sprintf("Created workspace '%s' (%s)", ws.Name, ws.ID))
}

func runWorkspaceList(cmd *cobra.Command, args []string) {
	a := current

	workspaces, err := a.store.ListWorkspaces(context.Background(), a.cfg.User.Name)
	if err != nil {
		a.fatal("Failed to list workspaces", err)
	}
	a.printer.PrintWorkspaceList(workspaces)
}
