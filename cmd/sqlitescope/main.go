// Command sqlitescope inspects and serves local SQLite databases: it
// opens plain or encrypted files, introspects and diffs schemas, runs
// queries, and hosts the REST API used by the desktop UI.
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/sqlitescope/sqlitescope/core/conn"
	"github.com/sqlitescope/sqlitescope/core/diff"
	"github.com/sqlitescope/sqlitescope/core/query"
	"github.com/sqlitescope/sqlitescope/core/schema"
	"github.com/sqlitescope/sqlitescope/core/snapshot"
	"github.com/sqlitescope/sqlitescope/core/sqlite"
	"github.com/sqlitescope/sqlitescope/internal/api"
	"github.com/sqlitescope/sqlitescope/internal/logging"
)

// CLI defines the command-line interface for sqlitescope.
var CLI struct {
	LogLevel  string `name:"log-level" default:"info" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" default:"text" help:"Log format (text, json)"`

	Serve   ServeCmd   `cmd:"" help:"Start the REST API server"`
	Open    OpenCmd    `cmd:"" help:"Open a database and report its state"`
	Schema  SchemaCmd  `cmd:"" help:"Introspect a database schema"`
	Query   QueryCmd   `cmd:"" help:"Run a single SQL statement"`
	Diff    DiffCmd    `cmd:"" help:"Compare two schemas"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Port           int      `help:"HTTP server port" default:"8080"`
	AllowedOrigins []string `name:"allowed-origins" help:"CORS allowed origins (empty allows all)"`
}

func (c *ServeCmd) Run() error {
	return api.Start(api.Config{
		Port:           c.Port,
		AllowedOrigins: c.AllowedOrigins,
	})
}

// OpenCmd opens a database, printing its connection descriptor. It is
// chiefly a cipher-probe check: a wrong password fails here the same way
// it fails over the API.
type OpenCmd struct {
	Path     string `arg:"" help:"Path to database file" type:"path"`
	Password string `help:"Password for encrypted databases"`
	ReadOnly bool   `name:"read-only" help:"Open read-only"`
}

func (c *OpenCmd) Run() error {
	store := conn.NewStore()
	defer store.CloseAll()

	descriptor, err := store.Open(context.Background(), conn.OpenRequest{
		Path:     c.Path,
		Password: c.Password,
		ReadOnly: c.ReadOnly,
	})
	if err != nil {
		return err
	}
	return printJSON(descriptor)
}

// SchemaCmd introspects a database and prints the snapshot, or writes it
// as a portable snapshot file.
type SchemaCmd struct {
	Path     string `arg:"" help:"Path to database file" type:"path"`
	Password string `help:"Password for encrypted databases"`
	Output   string `short:"o" help:"Write a snapshot file instead of printing JSON" type:"path"`
}

func (c *SchemaCmd) Run() error {
	snap, err := introspectPath(c.Path, c.Password)
	if err != nil {
		return err
	}
	if c.Output != "" {
		if err := snapshot.WriteFile(c.Output, snap); err != nil {
			return err
		}
		fp, err := snapshot.Fingerprint(snap)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s (fingerprint %s)\n", c.Output, fp)
		return nil
	}
	return printJSON(snap)
}

// QueryCmd runs one SQL statement against a database.
type QueryCmd struct {
	Path     string `arg:"" help:"Path to database file" type:"path"`
	SQL      string `arg:"" help:"SQL statement to execute"`
	Password string `help:"Password for encrypted databases"`
	ReadOnly bool   `name:"read-only" help:"Refuse write statements"`
}

func (c *QueryCmd) Run() error {
	ctx := context.Background()
	store := conn.NewStore()
	defer store.CloseAll()

	descriptor, err := store.Open(ctx, conn.OpenRequest{
		Path:     c.Path,
		Password: c.Password,
		ReadOnly: c.ReadOnly,
	})
	if err != nil {
		return err
	}
	db, _, err := store.Handle(descriptor.ID)
	if err != nil {
		return err
	}

	result, err := query.Execute(ctx, db, c.SQL)
	if err != nil {
		return err
	}
	return printJSON(result)
}

// DiffCmd compares two schemas. Each side is either a database file or a
// snapshot file written by the schema command.
type DiffCmd struct {
	Source         string `arg:"" help:"Source database or snapshot file" type:"path"`
	Target         string `arg:"" help:"Target database or snapshot file" type:"path"`
	SourcePassword string `name:"source-password" help:"Password for the source database"`
	TargetPassword string `name:"target-password" help:"Password for the target database"`
}

func (c *DiffCmd) Run() error {
	source, srcMeta, err := loadEndpoint(c.Source, c.SourcePassword)
	if err != nil {
		return err
	}
	target, tgtMeta, err := loadEndpoint(c.Target, c.TargetPassword)
	if err != nil {
		return err
	}
	return printJSON(diff.Compare(source, target, srcMeta, tgtMeta))
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("sqlitescope version %s (driver %s)\n", api.Version, sqlite.DriverName())
	return nil
}

// loadEndpoint resolves a path to a schema snapshot: snapshot files are
// decoded, anything else is opened as a database and introspected.
func loadEndpoint(path, password string) (schema.Snapshot, diff.EndpointMeta, error) {
	if snap, _, err := snapshot.ReadFile(path); err == nil {
		return snap, diff.EndpointMeta{Name: path, Kind: "snapshot"}, nil
	}

	snap, err := introspectPath(path, password)
	if err != nil {
		return schema.Snapshot{}, diff.EndpointMeta{}, err
	}
	return snap, diff.EndpointMeta{Name: path, Kind: "connection"}, nil
}

func introspectPath(path, password string) (schema.Snapshot, error) {
	ctx := context.Background()
	store := conn.NewStore()
	defer store.CloseAll()

	descriptor, err := store.Open(ctx, conn.OpenRequest{
		Path:     path,
		Password: password,
		ReadOnly: true,
	})
	if err != nil {
		return schema.Snapshot{}, err
	}
	db, _, err := store.Handle(descriptor.ID)
	if err != nil {
		return schema.Snapshot{}, err
	}

	snap, err := schema.IntrospectAll(ctx, db, descriptor.Filename)
	if err != nil {
		return schema.Snapshot{}, err
	}
	return *snap, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sqlitescope"),
		kong.Description("Local SQLite database inspection and change management"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), parseFormat(CLI.LogFormat))
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}

func parseFormat(s string) logging.Format {
	if s == "json" {
		return logging.FormatJSON
	}
	return logging.FormatText
}
