package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tileviewer/snes"
	"tileviewer/snes/usb2snes"
)

var flagRaw bool

// parseAddress accepts $7E0AF6, 0x7E0AF6 and bare hex 7E0AF6.
func parseAddress(s string) (uint32, error) {
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 24)
	if err != nil {
		return 0, fmt.Errorf("bad address '%s': %w", s, err)
	}
	return uint32(v), nil
}

var readCmd = &cobra.Command{
	Use:   "read <address> <size>",
	Short: "hex dump device memory",
	Long: `hex dump device memory. Addresses are SNES bus addresses ($7E0000-$7FFFFF is WRAM,
other addresses are mapped as LoROM) unless --raw is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		size, err := humanize.ParseBytes(args[1])
		if err != nil {
			return err
		}
		if size == 0 || size > 0x10000 {
			return fmt.Errorf("size must be between 1 and 64KiB")
		}

		pak := addr
		if !flagRaw {
			if pak, err = snes.BusToPak(addr); err != nil {
				return err
			}
		}

		return withDevice(cmd, func(c *usb2snes.Client) error {
			data, err := c.GetAddress(pak, int(size))
			if err != nil {
				return err
			}
			d := hex.Dumper(os.Stdout)
			defer d.Close()
			_, err = d.Write(data)
			return err
		})
	},
}

func init() {
	readCmd.Flags().BoolVar(&flagRaw, "raw", false, "address is already in usb2snes address space")
	rootCmd.AddCommand(readCmd)
}
