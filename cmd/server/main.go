package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/crushmatch/matchd/internal/keystore"
	"github.com/crushmatch/matchd/internal/metrics"
	"github.com/crushmatch/matchd/internal/rendezvous"
)

func main() {
	listenAddr := flag.String("listen", "127.0.0.1:6666", "address to listen for client connections on")
	privPath := flag.String("priv", "server.priv", "path to the server's PEM-encoded RSA private key")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	priv, err := keystore.LoadPrivateKey(*privPath)
	if err != nil {
		logger.Fatalln(err)
	}

	srv := rendezvous.NewServer(*listenAddr, priv, logger, metrics.New())

	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		logger.Println("exiting...")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		logger.Fatalln(err)
	}
}
