package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/crushmatch/matchd/internal/keystore"
	"github.com/crushmatch/matchd/internal/meshclient"
	"github.com/crushmatch/matchd/internal/metrics"
	"github.com/crushmatch/matchd/internal/prompt"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:6666", "address of the rendezvous server")
	pubPath := flag.String("pub", "server.pub", "path to the server's PEM-encoded RSA public key")
	listenAddr := flag.String("listen", "127.0.0.1:0", "address to listen for directly-connecting peers on")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	serverPub, err := keystore.LoadPublicKey(*pubPath)
	if err != nil {
		logger.Fatalln(err)
	}

	priv, err := keystore.GenerateClientKey()
	if err != nil {
		logger.Fatalln(err)
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logger.Fatalln(err)
	}

	reader := prompt.NewReader(os.Stdin, os.Stdout)
	ownName, err := reader.ReadName()
	if err != nil {
		logger.Fatalln(err)
	}
	crushName, err := reader.ReadCrush()
	if err != nil {
		logger.Fatalln(err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		logger.Println("exiting...")
		cancel()
	}()

	client, err := meshclient.Dial(ctx, *serverAddr, serverPub, priv, ln, ownName, crushName, logger, metrics.New())
	if err != nil {
		logger.Fatalln(err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	select {
	case <-client.Matched():
		logger.Println("it's a match!")
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil && ctx.Err() == nil {
			logger.Fatalln(err)
		}
	case <-ctx.Done():
		<-runErr
	}
}
