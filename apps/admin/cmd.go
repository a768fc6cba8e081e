package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf     *core.Config
	db       *sql.DB
	students roster.Repository
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status...)")
	fmt.Fprintln(cli.out, "  import-roster -file FILE - import students and guardians from a JSON file")
	fmt.Fprintln(cli.out, "  token -sub ID -role ROLE [-name NAME] - print a signed API token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("import-roster", flag.ContinueOnError)
	importCmd.SetOutput(cli.out)
	importFile := importCmd.String("file", "", "Path of the roster JSON file.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenSub := tokenCmd.String("sub", "", "The user ID (guardians use their roster ID).")
	tokenRole := tokenCmd.String("role", "", "The user role (admin:, teacher:, parent:...).")
	tokenName := tokenCmd.String("name", "", "The user display name.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "import-roster":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importRoster(*importFile)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenSub == "" || *tokenRole == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenSub, *tokenRole, *tokenName)
	default:
		cli.printUsage()
		return errHelp
	}
}
