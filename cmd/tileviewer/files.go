package main

import (
	"fmt"
	"os"
	"path"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tileviewer/snes/usb2snes"
)

var lsCmd = &cobra.Command{
	Use:   "ls [dir]",
	Short: "list a directory on the device",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "/"
		if len(args) > 0 {
			dir = args[0]
		}
		return withDevice(cmd, func(c *usb2snes.Client) error {
			entries, err := c.ListDir(dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if e.IsDir() {
					fmt.Printf("%s/\n", path.Join(dir, e.Name))
				} else {
					fmt.Println(path.Join(dir, e.Name))
				}
			}
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <device path> [local path]",
	Short: "download a file from the device",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		local := path.Base(args[0])
		if len(args) > 1 {
			local = args[1]
		}
		return withDevice(cmd, func(c *usb2snes.Client) error {
			data, err := c.GetFile(args[0])
			if err != nil {
				return err
			}
			if err = os.WriteFile(local, data, 0644); err != nil {
				return err
			}
			fmt.Printf("%s -> %s (%s)\n", args[0], local, humanize.Bytes(uint64(len(data))))
			return nil
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <local path> <device path>",
	Short: "upload a file to the device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withDevice(cmd, func(c *usb2snes.Client) error {
			if err := c.PutFile(args[1], data); err != nil {
				return err
			}
			fmt.Printf("%s -> %s (%s)\n", args[0], args[1], humanize.Bytes(uint64(len(data))))
			return nil
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <from> <to>",
	Short: "rename a file on the device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(c *usb2snes.Client) error {
			return c.Rename(args[0], args[1])
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "remove a file on the device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(c *usb2snes.Client) error {
			return c.Remove(args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(lsCmd, getCmd, putCmd, mvCmd, rmCmd)
}
