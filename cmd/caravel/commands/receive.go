package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/erikgeiser/promptkit/confirmation"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caravelhq/caravel"
	receiver_tui "github.com/caravelhq/caravel/cmd/caravel/tui/receiver"
	"github.com/caravelhq/caravel/internal/fsitem"
	"github.com/caravelhq/caravel/internal/transfer"
)

// ------------------------------------------------------ Receive ------------------------------------------------------

func Receive() *cobra.Command {
	receiveCmd := &cobra.Command{
		Use:     "receive [dest]",
		Aliases: []string{"listen"},
		Short:   "Receive files from a sender",
		Long:    "The receive command listens for an incoming transfer and writes the received files under the destination directory.",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("port", cmd.Flags().Lookup("port")); err != nil {
				return fmt.Errorf("binding port flag: %w", err)
			}
			if err := viper.BindPFlag("websocket", cmd.Flags().Lookup("websocket")); err != nil {
				return fmt.Errorf("binding websocket flag: %w", err)
			}
			if err := viper.BindPFlag("collision", cmd.Flags().Lookup("collision")); err != nil {
				return fmt.Errorf("binding collision flag: %w", err)
			}
			if err := viper.BindPFlag("device_name", cmd.Flags().Lookup("name")); err != nil {
				return fmt.Errorf("binding name flag: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := viper.GetString("dest")
			if len(args) == 1 {
				dest = args[0]
			}
			if err := ensureDest(dest); err != nil {
				return err
			}

			collision, err := fsitem.ParseCollision(viper.GetString("collision"))
			if err != nil {
				return err
			}

			lgr, err := setupLoggingFromViper()
			if err != nil {
				return err
			}
			defer lgr.Sync()

			opts := append(optionsFromViper(lgr), caravel.WithCollision(collision))
			port := viper.GetInt("port")
			if plain, _ := cmd.Flags().GetBool("plain"); plain {
				if err := handleReceiveCommandPlain(port, dest, opts); err != nil {
					return fmt.Errorf("running plain receive command: %w", err)
				}
				return nil
			}
			if err := handleReceiveCommand(port, dest, opts); err != nil {
				return fmt.Errorf("running receive command: %w", err)
			}
			return nil
		},
	}
	receiveCmd.Flags().IntP("port", "p", 0, "Port to listen on for incoming transfers")
	receiveCmd.Flags().BoolP("websocket", "w", false, "Accept transfers over websocket instead of raw TCP")
	receiveCmd.Flags().String("collision", "", "What to do when a received file already exists (rename|overwrite|fail)")
	receiveCmd.Flags().String("name", "", "Device name announced to the sender")
	receiveCmd.Flags().Bool("plain", false, "Plain progress output instead of the full UI")
	return receiveCmd
}

// ------------------------------------------------------ Handlers -----------------------------------------------------

// handleReceiveCommand is the receive application.
func handleReceiveCommand(port int, dest string, opts []caravel.Option) error {
	receiver := receiver_tui.New(port, dest, opts...)
	if _, err := receiver.Run(); err != nil {
		return fmt.Errorf("running receiver tui: %w", err)
	}
	fmt.Println("")
	return nil
}

func handleReceiveCommandPlain(port int, dest string, opts []caravel.Option) error {
	bar := progressbar.Default(100, "receiving")
	opts = append(opts, caravel.WithObserver(transfer.Observer{
		ProgressChanged: func(p int) {
			_ = bar.Set(p)
		},
		DeviceNameChanged: func(name string) {
			bar.Describe(fmt.Sprintf("receiving from %s", name))
		},
	}))

	l, err := caravel.Listen(fmt.Sprintf(":%d", port), opts...)
	if err != nil {
		return err
	}
	defer l.Close()
	fmt.Printf("listening on %s\n", l.Addr())

	if err := l.Receive(context.Background(), dest); err != nil {
		return err
	}
	_ = bar.Finish()
	fmt.Println("")
	return nil
}

// ensureDest verifies the destination directory, offering to create it when
// missing.
func ensureDest(dest string) error {
	info, err := os.Stat(dest)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("destination (%s) is not a directory", dest)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("checking destination (%s): %w", dest, err)
	}

	prompt := confirmation.New(fmt.Sprintf("Destination %q does not exist. Create it?", dest), confirmation.Yes)
	create, err := prompt.RunPrompt()
	if err != nil {
		return fmt.Errorf("running prompt: %w", err)
	}
	if !create {
		return fmt.Errorf("destination (%s) does not exist", dest)
	}
	return os.MkdirAll(dest, 0o755)
}
