package main

import (
	"fmt"

	"github.com/devine-kernel/ext2fs/pkg/ext2"
	"github.com/spf13/cobra"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir IMAGE PARENT_PATH NAME",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, dev, err := mountImage(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()
		defer fs.Unmount()

		parentIno, err := fs.ResolvePath(args[1])
		if err != nil {
			return err
		}

		parent := ext2.NodeFor(fs, parentIno)
		child, err := parent.Mkdir(args[2], 0755, nowStamp())
		if err != nil {
			return err
		}

		fmt.Printf("created inode %d\n", child.Ino)
		return nil
	},
}
