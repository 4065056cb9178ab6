package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tileviewer/snes/usb2snes"
)

var flagDevice string

var errNoDevice = errors.New("no device attached to the usb2snes service")

func connect(ctx context.Context) (*usb2snes.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return usb2snes.Connect(ctx, flagURL, flagName, logger.Named("usb2snes"))
}

// withDevice connects, attaches to --device (or the first listed device) and runs fn.
func withDevice(cmd *cobra.Command, fn func(c *usb2snes.Client) error) (err error) {
	var c *usb2snes.Client
	if c, err = connect(cmd.Context()); err != nil {
		return
	}
	defer c.Close()

	device := flagDevice
	if device == "" {
		var devices []string
		if devices, err = c.ListDevice(); err != nil {
			return
		}
		if len(devices) == 0 {
			return errNoDevice
		}
		device = devices[0]
	}

	logger.Debug("attach", zap.String("device", device))
	if err = c.Attach(device); err != nil {
		return
	}
	return fn(c)
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "list devices known to the usb2snes service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		version, err := c.AppVersion()
		if err != nil {
			return err
		}
		devices, err := c.ListDevice()
		if err != nil {
			return err
		}

		fmt.Printf("service: %s\n", version)
		if len(devices) == 0 {
			fmt.Println("no devices")
		}
		for _, d := range devices {
			fmt.Println(d)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "show firmware version, device type and running ROM",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(c *usb2snes.Client) error {
			info, err := c.Info()
			if err != nil {
				return err
			}
			fmt.Printf("version: %s\ntype:    %s\ngame:    %s\nflags:   %v\n", info.Version, info.DeviceType, info.Game, info.Flags)
			return nil
		})
	},
}

var bootCmd = &cobra.Command{
	Use:   "boot <path>",
	Short: "boot a ROM from the device filesystem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(c *usb2snes.Client) error {
			return c.Boot(args[0])
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "reset the console",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(c *usb2snes.Client) error {
			return c.Reset()
		})
	},
}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "return to the flash cart menu",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(c *usb2snes.Client) error {
			return c.Menu()
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDevice, "device", "", "device to attach to (default: first listed)")
	rootCmd.AddCommand(devicesCmd, infoCmd, bootCmd, resetCmd, menuCmd)
}
