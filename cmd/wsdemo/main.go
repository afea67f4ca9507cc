// Command wsdemo is a minimal WebSocket echo server built on wsupgrade,
// pipeline, and virtualtime: it awaits its upgrade handshakes through a
// virtualtime.Loop whose clock is tied to real time
// via repeated AdvanceTimeBy calls, demonstrating that the loop's API is as
// usable for production wall-clock scheduling as it is for deterministic
// tests. Grounded on ice-blockchain-subzero's cmd/subzero entrypoint
// (cobra root command, viper-backed config) and server/ws read loop.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joeycumines/netloop/headers"
	"github.com/joeycumines/netloop/netlog"
	"github.com/joeycumines/netloop/pipeline"
	"github.com/joeycumines/netloop/virtualtime"
	"github.com/joeycumines/netloop/wsupgrade"
)

var root = &cobra.Command{
	Use:   "wsdemo",
	Short: "a minimal WebSocket echo server exercising wsupgrade and virtualtime",
	RunE:  run,
}

func init() {
	root.Flags().String("addr", ":8080", "address to listen on")
	root.Flags().Uint32("max-frame-size", 16384, "maximum accepted WebSocket frame payload, in bytes")
	root.Flags().Bool("automatic-error-handling", true, "log abnormal websocket closures automatically")
	root.Flags().Duration("await-timeout", 5*time.Second, "timeout passed to virtualtime.AwaitFuture when bridging upgrade results")

	_ = viper.BindPFlags(root.Flags())
	viper.SetEnvPrefix("wsdemo")
	viper.AutomaticEnv()
}

func main() {
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	netlog.SetLogger(netlog.NewLogger(netlog.NewSlogWriter(slog.New(slog.NewTextHandler(os.Stderr, nil))), 0))

	loop := virtualtime.NewLoop()
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go driveWallClock(ctx, loop)

	upgrader := wsupgrade.New(
		wsupgrade.WithMaxFrameSize(viper.GetUint32("max-frame-size")),
		wsupgrade.WithAutomaticErrorHandling(viper.GetBool("automatic-error-handling")),
		wsupgrade.WithPipelineHandler(echoPipelineHandler),
	)

	awaitTimeout := viper.GetDuration("await-timeout")

	server := &http.Server{
		Addr: viper.GetString("addr"),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handleUpgrade(r.Context(), loop, upgrader, awaitTimeout, w, r)
		}),
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
		_ = loop.ShutdownGracefully(shutdownCtx)
		cancel()
	}()

	netlog.L().Info().Str("addr", server.Addr).Log("wsdemo: listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "wsdemo: server failed")
	}
	return nil
}

// driveWallClock keeps the loop's virtual clock moving in step with real
// time, so scheduled tasks (e.g. ping timers an application adds inside its
// pipeline handler) behave as a caller not otherwise interested in virtual
// time would expect.
func driveWallClock(ctx context.Context, loop *virtualtime.Loop) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			loop.AdvanceTimeBy(10 * time.Millisecond)
		}
	}
}

// handleUpgrade hijacks the incoming HTTP connection and drives it through
// an Upgrader, bridging the resulting loop-bound Future back into this
// handler goroutine with AwaitFuture.
func handleUpgrade(ctx context.Context, loop *virtualtime.Loop, upgrader *wsupgrade.Upgrader, awaitTimeout time.Duration, w http.ResponseWriter, r *http.Request) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijack unsupported", http.StatusInternalServerError)
		return
	}
	conn, _, err := hijacker.Hijack()
	if err != nil {
		http.Error(w, "hijack failed", http.StatusInternalServerError)
		return
	}

	ch := pipeline.NewChannel(conn)
	head := headers.Head{
		Method:  r.Method,
		URI:     r.RequestURI,
		Version: r.Proto,
		Headers: headers.FromHTTPHeader(r.Header),
	}

	upgradeFuture := upgrader.Upgrade(ctx, ch, head)

	if _, err := virtualtime.AwaitFuture(loop, upgradeFuture, awaitTimeout); err != nil {
		netlog.L().Err().Err(err).Str("remote", conn.RemoteAddr().String()).Log("wsdemo: upgrade failed")
		_ = conn.Close()
		return
	}
	netlog.L().Info().Str("remote", conn.RemoteAddr().String()).Str("channel", ch.ID.String()).Log("wsdemo: upgraded")
}

// echoPipelineHandler reads frames in a loop and writes each payload
// straight back to the sender, closing on any read error.
func echoPipelineHandler(ctx context.Context, ch *pipeline.Channel) *virtualtime.Future[struct{}] {
	var decoder *pipeline.FrameDecoderHandler
	var encoder *pipeline.FrameEncoderHandler
	var errHandler *pipeline.ProtocolErrorHandler
	for _, h := range ch.Pipeline().Handlers() {
		switch v := h.(type) {
		case *pipeline.FrameDecoderHandler:
			decoder = v
		case *pipeline.FrameEncoderHandler:
			encoder = v
		case *pipeline.ProtocolErrorHandler:
			errHandler = v
		}
	}

	go func() {
		defer ch.Close()
		if decoder == nil || encoder == nil {
			return
		}
		for {
			frame, err := decoder.ReadFrame(ch)
			if err != nil {
				if errHandler != nil {
					errHandler.Observe(err)
				}
				return
			}
			if len(frame.Payload) == 0 {
				continue
			}
			if err := encoder.WriteBinary(ch, frame.Payload); err != nil {
				return
			}
		}
	}()

	return virtualtime.Succeeded(struct{}{})
}
