package main

import (
	"fmt"
	"os"

	"github.com/devine-kernel/ext2fs/pkg/ext2"
	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat IMAGE PATH",
	Short: "Print a regular file's contents to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, dev, err := mountImage(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()
		defer fs.Unmount()

		ino, err := fs.ResolvePath(args[1])
		if err != nil {
			return err
		}

		in, err := fs.ReadInode(ino)
		if err != nil {
			return err
		}

		buf := make([]byte, in.Size())
		n, err := fs.ReadFile(&in, 0, buf)
		if err != nil {
			return err
		}

		_, err = os.Stdout.Write(buf[:n])
		return err
	},
}

var touchCmd = &cobra.Command{
	Use:   "touch IMAGE PARENT_PATH NAME",
	Short: "Create an empty regular file",
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
		child, err := parent.Create(args[2], 0644, nowStamp())
		if err != nil {
			return err
		}

		fmt.Printf("created inode %d\n", child.Ino)
		return nil
	},
}
