// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"notescope/internal/config"
	applog "notescope/internal/log"
	"notescope/internal/session"
	"notescope/internal/transport"
	"notescope/internal/transport/udp"
)

// publishers builds the transports results are published to: the logging
// transport always, UDP when enabled and a WebSocket server when wsAddr is
// set.
func (a *app) publishers(cfg config.Config, wsAddr string) (transport.Transport, error) {
	pubs := transport.Multi{transport.NewLoggingTransport()}

	if cfg.Transport.UDPEnabled {
		precision, err := udp.ParsePrecision(cfg.Transport.UDPPrecision)
		if err != nil {
			return nil, err
		}
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, err
		}
		pub, err := udp.NewPublisher(sender, precision)
		if err != nil {
			sender.Close()
			return nil, err
		}
		pubs = append(pubs, pub)
	}

	if wsAddr != "" {
		ws, err := transport.NewWebSocketTransport(wsAddr)
		if err != nil {
			return nil, errors.Join(err, pubs.Close())
		}
		pubs = append(pubs, ws)
		a.printf("Serving results on ws://%s/ws\n", ws.Addr())
	}
	return pubs, nil
}

func (a *app) serveCommand() *cobra.Command {
	var (
		rf   regionFlags
		ff   filterFlags
		addr string
	)
	cmd := &cobra.Command{
		Use:   "serve FILE",
		Short: "Analyse a region and serve the results over WebSocket until interrupted",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			ff.apply(cmd, &cfg.Filter)
			if addr != "" {
				cfg.Transport.WebSocketAddr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			pub, err := a.publishers(cfg, cfg.Transport.WebSocketAddr)
			if err != nil {
				return err
			}
			s, err := a.openSession(cfg, args[0], pub)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := rf.selectIn(cmd, s); err != nil {
				return err
			}
			if _, err := s.FilterFromConfig(); err != nil {
				return err
			}
			res, err := s.Analyze(cmd.Context(), session.AnalyzeOptions{})
			if err != nil {
				return err
			}
			if _, err := s.Reconstruct(cmd.Context()); err != nil {
				return err
			}
			a.printAnalysis(res)

			applog.Infof("Serve: session %s ready, press Ctrl+C to stop", s.ID)
			<-cmd.Context().Done()
			applog.Infof("Serve: shutting down")
			return nil
		},
	}
	rf.register(cmd)
	ff.register(cmd, true)
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "WebSocket listen address (default from config)")
	return cmd
}
