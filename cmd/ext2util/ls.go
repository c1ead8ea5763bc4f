package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls IMAGE [PATH]",
	Short: "List a directory's entries",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/"
		if len(args) > 1 {
			path = args[1]
		}

		fs, dev, err := mountImage(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()
		defer fs.Unmount()

		ino, err := fs.ResolvePath(path)
		if err != nil {
			return err
		}

		in, err := fs.ReadInode(ino)
		if err != nil {
			return err
		}

		for i := 0; ; i++ {
			entry, err := fs.Readdir(&in, i)
			if err != nil {
				break
			}
			fmt.Println(entry.Name)
		}

		return nil
	},
}
