package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/dropworks/pooldrop/service/app"
	"github.com/dropworks/pooldrop/service/chain"
	"github.com/dropworks/pooldrop/service/common"
	"github.com/dropworks/pooldrop/service/config"
	"github.com/dropworks/pooldrop/service/http"
	"github.com/dropworks/pooldrop/service/transactions"
	"github.com/dropworks/pooldrop/service/wallet"
)

const version = "0.1.0"

var (
	sha1ver   string // sha1 revision used to build the program
	buildTime string // when the executable was built
)

func init() {
	log.SetLevel(log.InfoLevel)
}

func main() {
	var (
		printVersion bool
		envFilePath  string
	)

	// If we should just print the version number and exit
	flag.BoolVar(&printVersion, "version", false, "if true, print version and exit")

	// Allow configuration of envfile path
	// If not set, ParseConfig will not try to load variables to environment from a file
	flag.StringVar(&envFilePath, "envfile", "", "envfile path")

	flag.Parse()

	if printVersion {
		fmt.Printf("v%s build on %s from sha1 %s\n", version, buildTime, sha1ver)
		os.Exit(0)
	}

	opts := &config.ConfigOptions{EnvFilePath: envFilePath}
	cfg, err := config.ParseConfig(opts)
	if err != nil {
		panic(err)
	}

	if err := runServer(cfg); err != nil {
		panic(err)
	}

	os.Exit(0)
}

func runServer(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config not provided")
	}

	logger := log.New()

	logger.Printf("Starting server (v%s)...\n", version)

	// Database
	db, err := common.NewGormDB(cfg)
	if err != nil {
		return err
	}
	defer common.CloseGormDB(db)

	// Migrate app database
	if err := app.Migrate(db); err != nil {
		return err
	}
	if err := transactions.Migrate(db); err != nil {
		return err
	}

	// Collaborators: the record store, the chain client (lazily dialed per
	// network) and the wallet backend used for sessions and signing.
	store := app.NewGormStore(db)
	chainClient := chain.NewClient(cfg)
	walletClient := wallet.NewHTTPClient(cfg)

	// Application
	a := app.New(cfg, store, walletClient, chainClient)

	// HTTP server
	server := http.NewServer(cfg, logger, a)

	server.ListenAndServe()

	return nil
}
