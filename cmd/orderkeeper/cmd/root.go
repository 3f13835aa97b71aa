package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataPath   string
	remoteAddr string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "orderkeeper",
	Short: "OrderKeeper - offline-first order and payment terminal engine",
	Long: `OrderKeeper keeps a restaurant terminal fully operational without
a network connection. Orders and payments land in a local durable store
first and a background engine reconciles them with the central server
whenever connectivity allows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "path to the local database file")
	rootCmd.PersistentFlags().StringVar(&remoteAddr, "remote", "", "base URL of the central server")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "address for the local API")
}
