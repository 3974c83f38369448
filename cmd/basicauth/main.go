package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chuangbo/basicauth"
	"github.com/joho/godotenv"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: BASICAUTH_PASSWORD=... %s -server auth.example.com -user alice\n", os.Args[0])
}

func main() {
	_ = godotenv.Load()

	server := flag.String("server", "", "Server address, e.g. auth.example.com")
	serverPort := flag.Int("server-port", 49777, "Server port")
	user := flag.String("user", "", "Username")
	certFile := flag.String("cert", "", "Server certificate file to verify connection, e.g. server.crt (default: system root ca)")
	insecure := flag.Bool("insecure", false, "Allow connections to the server without certs")
	logFile := flag.String("log", "", "Log file (default: stdout only)")
	flag.Parse()

	if *server == "" || *user == "" {
		usage()
		os.Exit(2)
	}

	c := &basicauth.Client{
		Server:     *server,
		ServerPort: *serverPort,
		CertFile:   *certFile,
		Insecure:   *insecure,
		Username:   *user,
		Password:   os.Getenv("BASICAUTH_PASSWORD"),
		Logger:     basicauth.NewLogger(*logFile),
	}
	if err := c.Dial(); err != nil {
		fmt.Fprintf(os.Stderr, "Could not connect to the server: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	name, err := c.Whoami(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not query the session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("authenticated as %s\n", name)
}
