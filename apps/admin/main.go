package main

import (
	"database/sql"
	"log"
	"os"

	dig_container "github.com/trezcool/slopeside/apps/api/di/dig"
	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/transition"
	"github.com/trezcool/slopeside/core/user"
	logsvc "github.com/trezcool/slopeside/services/logger"
	"github.com/trezcool/slopeside/services/scheduler"
)

var logger = log.New(os.Stdout, logsvc.PrefixAdmin, log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

func main() {
	c := dig_container.New(core.NewConfig)

	var code int
	err := c.Invoke(func(db *sql.DB, usrRepo user.Repository, transitions *transition.Service, jobs *scheduler.Scheduler) {
		if db != nil {
			defer func() { _ = db.Close() }()
		}

		cli := commandLine{
			db:          db,
			usrRepo:     usrRepo,
			transitions: transitions,
			jobs:        jobs,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Printf("\nerror: %s\n", err)
			}
			code = 1
		}
	})
	if err != nil {
		logger.Fatal(err)
	}
	os.Exit(code)
}
