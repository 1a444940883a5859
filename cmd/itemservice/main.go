// Command itemservice serves create and read operations on one DynamoDB table over HTTP.
//
//	itemservice serve -c config.yaml
//	itemservice healthcheck
//	itemservice config show
package main

import (
	"github.com/nimburion/itemservice/pkg/cli"
)

const serviceName = "itemservice"

func main() {
	cmd := cli.NewServiceCommand(cli.ServiceCommandOptions{
		Name:              serviceName,
		Description:       "HTTP front end for a DynamoDB item table",
		EnvPrefix:         "APP",
		RunServer:         runServer,
		CheckDependencies: checkDependencies,
	})
	cli.Execute(cmd)
}
