package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat IMAGE PATH",
	Short: "Print an inode's metadata",
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

		fmt.Printf("inode:  %d\n", ino)
		fmt.Printf("mode:   %#o\n", in.Mode)
		fmt.Printf("links:  %d\n", in.LinksCount)
		fmt.Printf("size:   %d\n", in.Size())
		fmt.Printf("blocks: %d (512B sectors)\n", in.Blocks)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync IMAGE",
	Short: "Flush the superblock, group descriptors, and cache to disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, dev, err := mountImage(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()

		if failures := fs.Sync(); failures > 0 {
			return fmt.Errorf("sync: %d block(s) failed to flush", failures)
		}
		return nil
	},
}
