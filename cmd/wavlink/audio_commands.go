package main

import (
	"errors"
	"fmt"

	"github.com/opd-ai/wavlink"
	"github.com/spf13/cobra"
)

func newListenCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Join the multicast stream and play it until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			dev, err := openDevices("", outputPath)
			if err != nil {
				return err
			}
			defer dev.Close()

			opts := ctx.options(out)
			opts.Sink = dev.sink
			cli, err := wavlink.NewClient(opts)
			if err != nil {
				return err
			}

			sess, err := cli.JoinStream(runCtx)
			if err != nil {
				_ = cli.Disconnect()
				return err
			}
			fmt.Fprintf(out, "Listening on %s:%d\n", sess.Group, sess.Port)

			select {
			case <-runCtx.Done():
			case <-sess.Done():
			}
			err = cli.Disconnect()
			fmt.Fprintf(out, "Received %d chunks\n", sess.Chunks())
			return err
		},
	}

	cmd.Flags().StringVar(&outputPath, "output", "", "Write received PCM to this file")
	return cmd
}

func newCallCommand(ctx *commandContext) *cobra.Command {
	var inputPath string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Call the server and talk until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("--input is required (\"-\" reads stdin)")
			}
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			dev, err := openDevices(inputPath, outputPath)
			if err != nil {
				return err
			}
			defer dev.Close()

			opts := ctx.options(out)
			opts.Sink = dev.sink
			opts.Microphone = dev.mic
			cli, err := wavlink.NewClient(opts)
			if err != nil {
				return err
			}

			call, err := cli.Call(runCtx)
			if err != nil {
				_ = cli.Disconnect()
				return err
			}

			select {
			case <-runCtx.Done():
			case <-call.Done():
			}
			err = cli.Disconnect()
			fmt.Fprintf(out, "Sent %d voice chunks\n", call.Frames())
			return err
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "Raw PCM to send (\"-\" for stdin)")
	cmd.Flags().StringVar(&outputPath, "output", "", "Write the answer's PCM to this file")
	return cmd
}
