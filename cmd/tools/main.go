package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MrCodingRobot/EmergencyStations/internal/config"
	"github.com/MrCodingRobot/EmergencyStations/internal/db"
	"github.com/MrCodingRobot/EmergencyStations/internal/migrate"
	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/repository"
	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/types"
	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

const usage = `usage: %s <command>
  migrate                      apply pending schema migrations
  decode <gen1|gen2> <hex> [transmit-time]
                               print the samples a payload reconstructs to
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "migrate":
		err = runMigrate(context.Background())
	case "decode":
		err = runDecode(os.Args[2:])
	default:
		err = fmt.Errorf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Driver == "postgres" {
		pool, err := db.OpenPostgres(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		fmt.Println("postgres schema ensured")
		return nil
	}

	conn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()

	applied, err := migrate.Run(ctx, conn)
	if err != nil {
		return err
	}
	for _, m := range applied {
		fmt.Printf("applied %s_%s\n", m.Version, m.Name)
	}
	fmt.Printf("migrations applied: %d\n", len(applied))
	return nil
}

func runDecode(args []string) error {
	if len(args) < 2 {
		return errors.New("need a generation and a hex payload")
	}
	gen, err := telemetry.ParseGeneration(args[0])
	if err != nil {
		return err
	}
	buf, err := telemetry.Decode(args[1], gen)
	if err != nil {
		return err
	}

	transmit := time.Now().In(telemetry.Local)
	if len(args) > 2 {
		t, err := time.Parse(time.RFC3339, args[2])
		if err != nil {
			return fmt.Errorf("invalid transmit time %q (expected RFC3339): %w", args[2], err)
		}
		transmit = t.In(telemetry.Local)
	}

	out := struct {
		Station     int            `json:"station"`
		Alarm       int            `json:"alarm"`
		WriteIndex  int            `json:"writeIndex,omitempty"`
		Discrepancy bool           `json:"discrepancy,omitempty"`
		Samples     []types.Sample `json:"samples"`
	}{
		Station:     buf.StationNumber,
		Alarm:       buf.Alarm,
		WriteIndex:  buf.WriteIndex,
		Discrepancy: buf.Discrepancy,
		Samples:     types.SamplesFrom(telemetry.Reconstruct(buf, transmit)),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
