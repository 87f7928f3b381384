// Package commands implements the tcapd CLI.
package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Commit is injected from main via buildinfo.GitHash.
var Commit = "unknown"

var v = viper.New()

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tcapd",
	Short: "tcapd - distributed capability runtime node",
	Long: `tcapd runs one node of a distributed capability-based runtime.
It binds a UDP socket to a network interface, exchanges capability
delegation, revocation, and invocation packets with peer nodes, and
optionally mirrors control packets to a switch control plane.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStart,
}

// Execute adds all child commands to the root command and runs it. It is
// called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.Flags()
	flags.StringP("interface", "i", "", "network interface to bind to (required)")
	flags.StringP("address", "a", "", "local ip:port to bind the UDP socket to (required)")
	flags.StringP("switch-addr", "s", "", "ip:port of the switch control plane (required)")
	flags.Bool("net-stats", false, "enable Prometheus send/receive counters")
	flags.String("metrics-addr", "", "address to serve /metrics on, when --net-stats is set")
	flags.Bool("direct-control-plane-copies", false, "mirror InsertCap/CapRevoke/CapInvalid to the switch address")

	_ = v.BindPFlag("interface", flags.Lookup("interface"))
	_ = v.BindPFlag("address", flags.Lookup("address"))
	_ = v.BindPFlag("switch_addr", flags.Lookup("switch-addr"))
	_ = v.BindPFlag("net_stats", flags.Lookup("net-stats"))
	_ = v.BindPFlag("metrics_addr", flags.Lookup("metrics-addr"))
	_ = v.BindPFlag("direct_control_plane_copies", flags.Lookup("direct-control-plane-copies"))

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Println("tcapd commit:", Commit)
		return nil
	},
}
