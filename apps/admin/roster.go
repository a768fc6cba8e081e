package main

import (
	"context"
	"fmt"

	"github.com/trezcool/mahudhurio/core/roster"
)

// importRoster upserts the guardians and students listed in a roster file.
func (cli *commandLine) importRoster(path string) error {
	imp, err := roster.LoadFile(path)
	if err != nil {
		return err
	}
	if err = cli.students.SaveRoster(context.Background(), imp); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "imported %d guardians and %d students\n", len(imp.Guardians), len(imp.Students))
	return nil
}
