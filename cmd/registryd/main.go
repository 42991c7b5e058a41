package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/composition/registrydaemon"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for daemon local data (optional)")
	apiAddr := flag.String("api-addr", "", "JSON-RPC listen address override (optional)")
	initKeystore := flag.Bool("init-keystore", false, "create a new keystore, print its mnemonic and exit")
	importKeystore := flag.Bool("import-keystore", false, "import a mnemonic from stdin into the keystore and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("registryd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	opts := registrydaemon.Options{
		ConfigPath: *configPath,
		DataDir:    *dataDir,
		APIAddr:    *apiAddr,
	}

	if *initKeystore || *importKeystore {
		var mnemonic string
		if *importKeystore {
			fmt.Fprintln(os.Stderr, "paste mnemonic, then press enter:")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				log.Fatalf("read mnemonic: %v", err)
			}
			mnemonic = strings.TrimSpace(line)
		}
		out, err := registrydaemon.InitKeystore(opts, mnemonic)
		if err != nil {
			log.Fatalf("keystore setup failed: %v", err)
		}
		if out != "" {
			fmt.Printf("keystore created; back up this mnemonic:\n%s\n", out)
		} else {
			fmt.Println("keystore imported")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := registrydaemon.New(ctx, opts)
	if err != nil {
		log.Fatalf("registryd failed to initialize: %v", err)
	}

	log.Println("registryd starting")
	if err := d.Run(ctx); err != nil {
		log.Fatalf("registryd failed: %v", err)
	}
	log.Println("registryd stopped")
}
