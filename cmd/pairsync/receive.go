package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/layer-3/pairsync"
	"github.com/layer-3/pairsync/companion"
	"github.com/spf13/cobra"
)

func newReceiveCmd(opts *rootOptions) *cobra.Command {
	var (
		code    string
		outPath string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "receive --code <bootstrap> --out <file>",
		Short: "Receive an export using the code shown by the sharing device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return runReceive(ctx, cmd.OutOrStdout(), opts, code, outPath)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "bootstrap code from the sharing device")
	cmd.Flags().StringVar(&outPath, "out", "-", "file to write the export to, - for stdout")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up after this long")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func runReceive(ctx context.Context, out io.Writer, opts *rootOptions, code, outPath string) error {
	a, err := wireApp(opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	progress := io.Discard
	if outPath != "-" {
		progress = out
	}
	var r pairsync.Companion = companion.NewReceiver(a.channel,
		companion.WithLogger(opts.logger),
		companion.WithProgress(func(received, total uint32) {
			fmt.Fprintf(progress, "received %d/%d\n", received, total)
		}),
	)

	payload, err := r.ReceiveCode(ctx, code)
	if err != nil {
		return err
	}

	if outPath == "-" {
		_, err = out.Write(payload)
		return err
	}
	if err := os.WriteFile(outPath, payload, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	fmt.Fprintf(out, "wrote %d bytes to %s\n", len(payload), outPath)
	return nil
}
