package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/layer-3/pairsync"
	"github.com/layer-3/pairsync/adapters/export"
	"github.com/layer-3/pairsync/core"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

func newShareCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "share --file <export>",
		Short: "Show a pairing code and stream the export to the device that scans it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runShare(ctx, cmd.OutOrStdout(), opts, file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "export file to send")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runShare(ctx context.Context, out io.Writer, opts *rootOptions, file string) error {
	a, err := wireApp(opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var eng pairsync.Primary
	eng, err = a.newEngine(export.NewFile(file), nil, opts.logger)
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}

	for ev := range eng.Events() {
		switch ev.Kind {
		case core.EventCredentialsChanged:
			if err := printCode(out, ev.Session.BootstrapCode(opts.cfg.Pairing.Scheme)); err != nil {
				eng.Cancel()
				return err
			}
		case core.EventSyncStarted:
			fmt.Fprintln(out, "peer connected, sending export")
		case core.EventSyncProgress:
			fmt.Fprintf(out, "sent %3.0f%%\n", ev.Fraction*100)
		case core.EventCompleted:
			fmt.Fprintln(out, "export delivered")
		case core.EventAborted:
			fmt.Fprintf(out, "pairing aborted: %s\n", ev.Reason)
		}
	}

	return eng.Wait(context.Background())
}

func printCode(out io.Writer, code string) error {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to render QR code: %w", err)
	}
	fmt.Fprintln(out, qr.ToSmallString(false))
	fmt.Fprintln(out, code)
	return nil
}
