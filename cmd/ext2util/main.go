package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagVerbose bool
	flagDebug   bool

	log = logrus.StandardLogger()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ext2util",
	Short: "Inspect and manipulate ext2 filesystem images from a host process",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if flagDebug {
			log.SetLevel(logrus.DebugLevel)
		} else if flagVerbose {
			log.SetLevel(logrus.InfoLevel)
		} else {
			log.SetLevel(logrus.WarnLevel)
		}
	}

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(touchCmd)
	rootCmd.AddCommand(syncCmd)
}
