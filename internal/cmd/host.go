package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/sshrun/internal/config"
	"github.com/yoanbernabeu/sshrun/internal/security"
)

func (a *app) newHostCmd() *cobra.Command {
	hostCmd := &cobra.Command{
		Use:   "host",
		Short: "Manage saved hosts",
		Long:  `Commands to add, list, and remove saved hosts. A saved alias can be used wherever a target is expected.`,
	}

	hostCmd.AddCommand(&cobra.Command{
		Use:   "add <alias> <[user@]host[:port]>",
		Short: "Save a host under an alias",
		Long: `Saves a host to the global configuration.

Example:
  sshrun host add web1 deploy@web1.example.com
  sshrun host add db root@10.0.0.7:2222`,
		Args: cobra.ExactArgs(2),
		RunE: a.runHostAdd,
	})

	hostCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved hosts",
		Args:  cobra.NoArgs,
		RunE:  a.runHostList,
	})

	hostCmd.AddCommand(&cobra.Command{
		Use:   "remove <alias>",
		Short: "Remove a saved host",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runHostRemove,
	})

	return hostCmd
}

func (a *app) runHostAdd(cmd *cobra.Command, args []string) error {
	alias := args[0]
	hostSpec := args[1]

	// Validate alias
	if err := security.ValidateHostAlias(alias); err != nil {
		return fmt.Errorf("invalid host alias: %w", err)
	}

	target, err := config.ParseTarget(hostSpec)
	if err != nil {
		return err
	}

	// Load global config
	globalCfg, err := a.loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	hostCfg := config.HostConfig{
		Host: target.Host,
		User: target.User,
		Port: target.Port,
	}
	if a.v.IsSet("port") {
		hostCfg.Port = a.v.GetInt("port")
	}
	if a.v.IsSet("user") {
		hostCfg.User = a.v.GetString("user")
	}

	// Validate
	if errors := config.ValidateHostConfig(&hostCfg); errors.HasErrors() {
		return fmt.Errorf("invalid host configuration: %w", errors)
	}

	// Add host
	if err := globalCfg.AddHost(alias, hostCfg); err != nil {
		return err
	}

	// Save config
	if err := a.saveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	saved := globalCfg.Hosts[alias]
	a.PrintSuccess("Added host '%s' (%s)", alias, config.Target{User: saved.User, Host: saved.Host, Port: saved.Port})
	return nil
}

func (a *app) runHostList(cmd *cobra.Command, args []string) error {
	globalCfg, err := a.loadGlobalConfig()
	if err != nil {
		return err
	}

	hosts := globalCfg.ListHosts()
	if len(hosts) == 0 {
		a.PrintInfo("No hosts configured")
		fmt.Fprintln(a.stdout)
		fmt.Fprintln(a.stdout, "Add a host with:")
		fmt.Fprintln(a.stdout, "  sshrun host add <alias> <[user@]host[:port]>")
		return nil
	}

	fmt.Fprintln(a.stdout, "Saved hosts:")
	fmt.Fprintln(a.stdout)
	for _, alias := range hosts {
		target, err := globalCfg.ResolveTarget(alias)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "  %s\n", alias)
		fmt.Fprintf(a.stdout, "    Host: %s\n", target)
		fmt.Fprintln(a.stdout)
	}

	return nil
}

func (a *app) runHostRemove(cmd *cobra.Command, args []string) error {
	alias := args[0]

	// Validate alias
	if err := security.ValidateHostAlias(alias); err != nil {
		return fmt.Errorf("invalid host alias: %w", err)
	}

	globalCfg, err := a.loadGlobalConfig()
	if err != nil {
		return err
	}

	if err := globalCfg.RemoveHost(alias); err != nil {
		return err
	}

	if err := a.saveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	a.PrintSuccess("Removed host '%s'", alias)
	return nil
}
