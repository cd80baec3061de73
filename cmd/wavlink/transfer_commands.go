package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/opd-ai/wavlink"
	"github.com/opd-ai/wavlink/file"
	"github.com/spf13/cobra"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var saveAs string

	cmd := &cobra.Command{
		Use:   "get <file.wav>",
		Short: "Download a file from the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			cli, err := wavlink.NewClient(ctx.options(out))
			if err != nil {
				return err
			}
			defer cli.Disconnect()

			target := args[0]
			if cmd.Flags().Changed("save-as") {
				target = saveAs
			}
			res, err := cli.DownloadAs(runCtx, args[0], target)
			if err != nil {
				return err
			}
			switch res.Outcome {
			case file.OutcomeNotFound:
				return fmt.Errorf("%s: %w", args[0], file.ErrFileNotFound)
			default:
				fmt.Fprintf(out, "Saved %s (%s)\n", res.FileName, humanize.Bytes(uint64(res.Bytes)))
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&saveAs, "save-as", "o", "", "Local name; empty names the file after the connection")
	return cmd
}

func newPutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file.wav>",
		Short: "Upload a file to the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			cli, err := wavlink.NewClient(ctx.options(out))
			if err != nil {
				return err
			}
			defer cli.Disconnect()

			res, err := cli.Upload(runCtx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Sent %s (%s)\n", res.FileName, humanize.Bytes(uint64(res.Bytes)))
			return nil
		},
	}
}
