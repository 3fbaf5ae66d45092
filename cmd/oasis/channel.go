package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/oasis-iglesia/oasis/internal/channel"
)

func channelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Inspect and operate the WhatsApp channel",
	}
	cmd.AddCommand(channelStatusCmd(), channelQRCmd(), channelResetCmd())
	return cmd
}

func channelStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connection status, kill switch and live provider state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Release()

			ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
			defer cancel()
			report, err := a.Channel().Status(ctx)
			if err != nil {
				return err
			}
			printStatus(report)
			return nil
		},
	}
}

func printStatus(r channel.StatusReport) {
	label := color.New(color.Bold).SprintFunc()
	status := string(r.Status)
	switch r.Status {
	case channel.StatusConnected:
		status = color.GreenString(status)
	case channel.StatusBannedOrDisconnected, channel.StatusDisconnected:
		status = color.RedString(status)
	default:
		status = color.YellowString(status)
	}
	fmt.Printf("%s %s\n", label("status:     "), status)
	fmt.Printf("%s %s\n", label("live state: "), r.LiveState)
	if r.KillSwitch {
		fmt.Printf("%s %s (%s)\n", label("kill switch:"), color.RedString("ACTIVE"), r.KillReason)
	} else {
		fmt.Printf("%s %s\n", label("kill switch:"), color.GreenString("off"))
	}
	fmt.Printf("%s %v\n", label("qr pending: "), r.HasQR)
}

func channelQRCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Request a pairing QR from the provider and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Release()

			ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
			defer cancel()
			resp, err := a.Channel().QRCode(ctx)
			if err != nil {
				return err
			}

			if code := cast.ToString(resp["code"]); code != "" {
				q, err := qrcode.New(code, qrcode.Medium)
				if err != nil {
					return err
				}
				fmt.Println(q.ToSmallString(false))
				color.Cyan("Scan with WhatsApp > Linked devices. The code rotates about every 20 seconds.")
			}
			if pairing := cast.ToString(resp["pairingCode"]); pairing != "" {
				fmt.Println("pairing code:", pairing)
			}
			if out != "" {
				return writeQRImage(cast.ToString(resp["base64"]), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write the provider QR image (PNG) to this file")
	return cmd
}

func writeQRImage(dataURL, path string) error {
	if dataURL == "" {
		return fmt.Errorf("provider returned no QR image")
	}
	if i := strings.Index(dataURL, ","); i >= 0 {
		dataURL = dataURL[i+1:]
	}
	png, err := base64.StdEncoding.DecodeString(dataURL)
	if err != nil {
		return fmt.Errorf("decode QR image: %w", err)
	}
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return err
	}
	color.Green("QR image written to %s", path)
	return nil
}

func channelResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-kill-switch",
		Short: "Clear the kill switch so sends are allowed again",
		Long: "Clears the kill switch flag and reason unconditionally. It does not check that " +
			"the number is actually connected; reconnect it first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Release()

			ctx := context.Background()
			prev, err := a.Channel().Gate().State(ctx)
			if err != nil {
				return err
			}
			if err := a.Channel().ResetKillSwitch(ctx); err != nil {
				return err
			}
			if prev.Active {
				color.Yellow("kill switch cleared (was: %s)", prev.Reason)
			} else {
				fmt.Println("kill switch was not active")
			}
			return nil
		},
	}
}
