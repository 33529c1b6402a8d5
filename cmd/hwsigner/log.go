package main

import (
	"os"

	"github.com/btccom/hwsigner/api"
	"github.com/btccom/hwsigner/rpcsdk"
	"github.com/btccom/hwsigner/session"
	"github.com/btccom/hwsigner/signer"
	"github.com/btcsuite/btclog"
)

// Loggers per subsystem. They write to stderr, stdout being
// reserved to command output.
var (
	backendLog = btclog.NewBackend(os.Stderr)

	mainLog = backendLog.Logger("HWSG")
	sessLog = backendLog.Logger("SESS")
	signLog = backendLog.Logger("SIGN")
	rsdkLog = backendLog.Logger("RSDK")
	hapiLog = backendLog.Logger("HAPI")
)

func init() {
	session.UseLogger(sessLog)
	signer.UseLogger(signLog)
	rpcsdk.UseLogger(rsdkLog)
	api.UseLogger(hapiLog)
}

var subsystemLoggers = map[string]btclog.Logger{
	"HWSG": mainLog,
	"SESS": sessLog,
	"SIGN": signLog,
	"RSDK": rsdkLog,
	"HAPI": hapiLog,
}

func setLogLevels(level btclog.Level) {
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
}
