// Command vsearchd runs the vector search engine server: it loads
// configuration, wires the meta/agent/query/admin layers to the in-memory
// reference index, and serves both the binary-RPC and HTTP/JSON surfaces
// until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vsearchio/vsearch/admin"
	"github.com/vsearchio/vsearch/agent"
	"github.com/vsearchio/vsearch/cmn"
	"github.com/vsearchio/vsearch/index/memindex"
	"github.com/vsearchio/vsearch/internal/xlog"
	"github.com/vsearchio/vsearch/meta"
	"github.com/vsearchio/vsearch/metrics"
	"github.com/vsearchio/vsearch/query"
	"github.com/vsearchio/vsearch/server"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "vsearchd",
		Short: "vector search engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a config file (overlays VSEARCH_* env vars on top of defaults)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(configPath string) error {
	cfg, err := cmn.Load(configPath)
	if err != nil {
		return err
	}

	xlog.SetLevel(xlog.Level(cfg.LogLevel))
	if err := xlog.Configure(cfg.LogDirectory, cfg.LogFile); err != nil {
		xlog.Warnf("vsearchd: logging to stderr, could not configure log file: %v", err)
	}

	ms, err := meta.NewService(cfg.Meta.URI)
	if err != nil {
		return err
	}
	defer ms.Close()

	idx := memindex.New()

	ia := agent.NewIndexAgent(ms, idx, cfg.Index.MaxBuildQPS, cfg.Index.BuildThreadCount)
	qa := query.NewAgent(ms, idx, cfg.Query.ThreadCount)
	aa := admin.NewAgent(ms, ia, time.Duration(cfg.Index.DrainTimeoutS)*time.Second)
	mr := metrics.NewRegistry()
	h := server.NewHandler(aa, ia, qa, mr)

	var httpSrv *server.HTTPServer
	var rpcSrv *server.RPCServer

	if cfg.EnableHTTP() {
		httpAddr := fmt.Sprintf(":%d", cfg.HTTPListenPort)
		httpSrv = server.NewHTTPServer(httpAddr, h, mr)
		go func() {
			xlog.Infof("vsearchd: http listening on %s", httpAddr)
			if err := httpSrv.ListenAndServe(); err != nil {
				xlog.Errorf("vsearchd: http server stopped: %v", err)
			}
		}()
	}

	if cfg.EnableGRPC() {
		rpcAddr := fmt.Sprintf(":%d", cfg.GRPCListenPort)
		rpcSrv, err = server.NewRPCServer(rpcAddr, h)
		if err != nil {
			return err
		}
		go func() {
			xlog.Infof("vsearchd: binary-rpc listening on %s", rpcAddr)
			if err := rpcSrv.Serve(); err != nil {
				xlog.Warnf("vsearchd: rpc server stopped: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	xlog.Infof("vsearchd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Only the wire surfaces are stopped here, HTTP first and then binary
	// RPC; the admin, query and index agents have no stop step, and the
	// meta service is closed by the deferred ms.Close when runDaemon returns.
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			xlog.Warnf("vsearchd: http shutdown: %v", err)
		}
	}
	if rpcSrv != nil {
		if err := rpcSrv.Shutdown(shutdownCtx); err != nil {
			xlog.Warnf("vsearchd: rpc shutdown: %v", err)
		}
	}
	return nil
}
