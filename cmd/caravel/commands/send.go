package commands

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/caravelhq/caravel"
	sender_tui "github.com/caravelhq/caravel/cmd/caravel/tui/sender"
	"github.com/caravelhq/caravel/internal/fsitem"
	"github.com/caravelhq/caravel/internal/transfer"
)

// -------------------------------------------------------- Send -------------------------------------------------------

func Send() *cobra.Command {
	sendCmd := &cobra.Command{
		Use:   "send host[:port] file1 file2...",
		Short: "Send files and directories to a receiver",
		Long:  "The send command transfers one or more files or directories to a listening receiver. Directories are sent recursively.",
		Args:  cobra.MinimumNArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("websocket", cmd.Flags().Lookup("websocket")); err != nil {
				return fmt.Errorf("binding websocket flag: %w", err)
			}
			if err := viper.BindPFlag("chunk_size", cmd.Flags().Lookup("chunk-size")); err != nil {
				return fmt.Errorf("binding chunk-size flag: %w", err)
			}
			if err := viper.BindPFlag("device_name", cmd.Flags().Lookup("name")); err != nil {
				return fmt.Errorf("binding name flag: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := args[0]
			if err := validateAddress(addr); err != nil {
				return fmt.Errorf("%w: (%s) is not a valid receiver address", err, addr)
			}
			addr = ensurePort(addr)

			lgr, err := setupLoggingFromViper()
			if err != nil {
				return err
			}
			defer lgr.Sync()

			opts := optionsFromViper(lgr)
			if plain, _ := cmd.Flags().GetBool("plain"); plain {
				if err := handleSendCommandPlain(addr, args[1:], opts); err != nil {
					return fmt.Errorf("running plain send command: %w", err)
				}
				return nil
			}
			if err := handleSendCommand(addr, args[1:], opts); err != nil {
				return fmt.Errorf("running send command: %w", err)
			}
			return nil
		},
	}
	sendCmd.Flags().BoolP("websocket", "w", false, "Transfer over websocket instead of raw TCP")
	sendCmd.Flags().Int("chunk-size", 0, "Content bytes carried per packet")
	sendCmd.Flags().String("name", "", "Device name announced to the receiver")
	sendCmd.Flags().Bool("plain", false, "Plain progress output instead of the full UI")
	return sendCmd
}

// ------------------------------------------------------ Handlers -----------------------------------------------------

// handleSendCommand is the sender application.
func handleSendCommand(addr string, paths []string, opts []caravel.Option) error {
	sender := sender_tui.New(addr, paths, opts...)
	if _, err := sender.Run(); err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	fmt.Println("")
	return nil
}

func handleSendCommandPlain(addr string, paths []string, opts []caravel.Option) error {
	bundle, err := fsitem.Gather(paths)
	if err != nil {
		return err
	}
	total := bundle.TotalSize()
	bar := progressbar.DefaultBytes(total, "sending")
	opts = append(opts, caravel.WithObserver(transfer.Observer{
		ProgressChanged: func(p int) {
			_ = bar.Set64(total * int64(p) / 100)
		},
	}))
	if err := caravel.Send(context.Background(), addr, paths, opts...); err != nil {
		return err
	}
	_ = bar.Finish()
	fmt.Println("")
	return nil
}

// optionsFromViper maps the resolved configuration onto transfer options.
func optionsFromViper(lgr *zap.Logger) []caravel.Option {
	opts := []caravel.Option{
		caravel.WithLogger(lgr),
		caravel.WithWebsocket(viper.GetBool("websocket")),
	}
	if name := viper.GetString("device_name"); name != "" {
		opts = append(opts, caravel.WithDeviceName(name))
	}
	if size := viper.GetInt("chunk_size"); size > 0 {
		opts = append(opts, caravel.WithChunkSize(size))
	}
	return opts
}
