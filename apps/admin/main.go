package main

import (
	"log"
	"os"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/storage/database"
	"github.com/trezcool/mahudhurio/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.OpenX(conf)
	errAndDie(err)
	defer db.Close()

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db.DB,
		students: sqlxrepos.NewRosterRepository(db),
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
