package main

import (
	"fmt"

	"github.com/opd-ai/wavlink"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var protocols []string
	var streamFile string
	var inputPath string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve files, a multicast stream or voice calls until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			opts := ctx.options(out)

			dev, err := openDevices(inputPath, outputPath)
			if err != nil {
				return err
			}
			defer dev.Close()
			opts.Sink = dev.sink
			opts.Microphone = dev.mic

			srv, err := wavlink.NewServer(opts)
			if err != nil {
				return err
			}
			srv.Select(streamFile)

			for _, name := range protocols {
				proto, err := wavlink.ParseProtocol(name)
				if err != nil {
					_ = srv.Shutdown()
					return err
				}
				if err := srv.Start(runCtx, proto); err != nil {
					_ = srv.Shutdown()
					return fmt.Errorf("start %s: %w", proto, err)
				}
				if proto == wavlink.ProtocolTCP {
					fmt.Fprintf(out, "Serving %s on %s\n", opts.Config.Server.FilesDir, srv.Addr())
				}
			}

			if cast := srv.Stream(); cast != nil {
				select {
				case <-runCtx.Done():
				case <-cast.Done():
					fmt.Fprintf(out, "Stream of %s finished\n", cast.FileName)
					if len(protocols) == 1 {
						return srv.Shutdown()
					}
					<-runCtx.Done()
				}
			} else {
				<-runCtx.Done()
			}
			return srv.Shutdown()
		},
	}

	cmd.Flags().StringSliceVar(&protocols, "protocol", []string{"tcp"}, "Protocols to offer: tcp, multicast, call")
	cmd.Flags().StringVarP(&streamFile, "file", "f", "", "File to stream with the multicast protocol")
	cmd.Flags().StringVar(&inputPath, "input", "", "Raw PCM answering calls (\"-\" for stdin)")
	cmd.Flags().StringVar(&outputPath, "output", "", "Write played PCM to this file")
	return cmd
}
