// Command lsmcli is an interactive REPL that sends one-letter command
// lines to a running lsmserver over the command socket, mirroring the
// teacher's cmd/cli REPL loop structure (banner, bufio.Scanner prompt
// loop, help/exit handling) over the six-command engine protocol.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/nrigby/lsmkv/pkg/transport"
)

func main() {
	addr := flag.String("addr", "ipc:///tmp/lsmkv.sock", "command socket address")
	authEnabled := flag.Bool("auth", false, "authenticate before sending commands")
	clientID := flag.String("client-id", "lsmcli", "client id presented during auth")
	secret := flag.String("secret", "", "shared secret, required when -auth is set")
	flag.Parse()

	printBanner()

	factory := transport.NewMangosSocketFactory()
	client, err := transport.NewClient(factory, *addr, *authEnabled)
	if err != nil {
		fmt.Printf("failed to connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer client.Close()

	if *authEnabled {
		if err := client.Authenticate(*clientID, *secret); err != nil {
			fmt.Printf("authentication failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("authenticated")
	}

	fmt.Printf("connected to %s\n", *addr)
	fmt.Println("Type 'help' for the command syntax, 'exit' to quit")
	fmt.Println()

	run(client)
}

func printBanner() {
	banner := `
==========================
   lsmkv interactive client
==========================
`
	fmt.Println(banner)
}

func run(client *transport.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("lsmkv> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("goodbye")
			break
		}
		if input == "help" {
			showHelp()
			continue
		}

		resp, err := client.Send(input)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(resp)
	}
}

func showHelp() {
	help := `
Commands:
  p K V     put key K to value V
  g K       get the value stored at K
  r LO HI   range scan over [LO, HI)
  d K       delete K
  l PATH    bulk-load (k,v) pairs from PATH (local path or s3://bucket/key)
  s         print stats
  help      show this message
  exit      quit
`
	fmt.Println(help)
}
