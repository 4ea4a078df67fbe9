package main

import (
	"os"
	_ "time/tzdata" // 組織タイムゾーンを zoneinfo の無い環境でも引けるようにする

	"ATLAS-backend/internal/commands"
)

// -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	commands.SetVersion(version, commit)
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
