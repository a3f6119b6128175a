package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) runJob(name string) error {
	count, err := cli.jobs.RunJob(context.Background(), name)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d updated\n", name, count)
	return nil
}
