package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/stash/internal/daemon"
	"github.com/matheus3301/stash/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	noLogin := flag.Bool("no-login", false, "stay signed out until a login request")
	flag.Parse()

	sessionName, err := session.ResolveName(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{SessionName: sessionName, NoAutoLogIn: *noLogin}),
	)

	app.Run()
}
