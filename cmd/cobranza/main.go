package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/aulatech/cobranza/internal/clock"
	"github.com/aulatech/cobranza/internal/config"
	"github.com/aulatech/cobranza/internal/migration"
	"github.com/aulatech/cobranza/internal/server"
	"github.com/aulatech/cobranza/pkg/db"
	"github.com/aulatech/cobranza/pkg/log"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
