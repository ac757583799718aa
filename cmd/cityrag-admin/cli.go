package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/cityrag/internal/app"
	"github.com/kailas-cloud/cityrag/internal/config"
	"github.com/kailas-cloud/cityrag/internal/domain/authz"
	domcity "github.com/kailas-cloud/cityrag/internal/domain/city"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	logpkg "github.com/kailas-cloud/cityrag/internal/logger"
	chiTransport "github.com/kailas-cloud/cityrag/internal/transport/chi"
	"github.com/kailas-cloud/cityrag/internal/transport/mcp"
	"github.com/kailas-cloud/cityrag/internal/transport/payload"
	cityuc "github.com/kailas-cloud/cityrag/internal/usecase/city"
	"github.com/kailas-cloud/cityrag/internal/version"
)

// env carries what every command needs. appOpts lets tests swap the store and embedder.
type env struct {
	out     io.Writer
	in      io.Reader
	appOpts []app.Option

	ok   func(a ...interface{}) string
	warn func(a ...interface{}) string
	bold func(a ...interface{}) string
}

func newCLI(out io.Writer, in io.Reader, opts ...app.Option) *cli.App {
	e := &env{
		out:     out,
		in:      in,
		appOpts: opts,
		ok:      color.New(color.FgGreen, color.Bold).SprintFunc(),
		warn:    color.New(color.FgYellow, color.Bold).SprintFunc(),
		bold:    color.New(color.FgCyan, color.Bold).SprintFunc(),
	}

	cityFlag := &cli.StringFlag{Name: "city", Aliases: []string{"c"}, Usage: "City slug", Required: true}

	return &cli.App{
		Name:      "cityrag-admin",
		Usage:     "Administer the municipal document collection",
		Version:   version.Version,
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"f"},
				Usage:   "Path to a config file (default: config/<env>.yaml)",
				EnvVars: []string{"CITYRAG_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name used to locate the config file",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Store items from a JSON file ({\"events\": [...]} or {\"items\": [...]})",
				Action: e.ingest,
				Flags: []cli.Flag{
					cityFlag,
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Document type", Value: string(domdoc.TypeEvent)},
					&cli.StringFlag{Name: "file", Usage: "JSON file, - for stdin", Value: "-"},
				},
			},
			{
				Name:   "search",
				Usage:  "Search active documents",
				Action: e.search,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Query text", Required: true},
					&cli.StringFlag{Name: "city", Aliases: []string{"c"}, Usage: "City slug", Value: query.All},
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Document type", Value: query.All},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results"},
					&cli.BoolFlag{Name: "vector", Usage: "Rank by embedding similarity"},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show collection statistics",
				Action: e.stats,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "city", Aliases: []string{"c"}, Usage: "Restrict to one city"},
				},
			},
			{
				Name:   "clear-city",
				Usage:  "Delete every document of a city",
				Action: e.clearCity,
				Flags: []cli.Flag{
					cityFlag,
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm deletion"},
				},
			},
			{
				Name:   "clear-all",
				Usage:  "Delete the whole collection (requires admin.allow_purge_all)",
				Action: e.clearAll,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm deletion"},
				},
			},
			{
				Name:  "city",
				Usage: "Manage city configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "put",
						Usage:  "Create or replace a city from a YAML file",
						Action: e.cityPut,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "file", Usage: "YAML file, - for stdin", Required: true},
						},
					},
					{
						Name:   "list",
						Usage:  "List configured cities",
						Action: e.cityList,
					},
				},
			},
			{
				Name:   "token",
				Usage:  "Issue a signed access token",
				Action: e.token,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "Token subject", Required: true},
					&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Usage: "reader, admin or superadmin", Value: string(authz.RoleAdmin)},
					&cli.StringSliceFlag{Name: "cities", Usage: "Cities an admin may write"},
					&cli.DurationFlag{Name: "ttl", Usage: "Token lifetime, 0 for none", Value: 24 * time.Hour},
					&cli.StringFlag{Name: "secret", Usage: "Signing secret (default: auth.jwt_secret)", EnvVars: []string{"CITYRAG_JWT_SECRET"}},
				},
			},
			{
				Name:   "mcp-stdio",
				Usage:  "Serve the MCP tools on stdin/stdout as the system principal",
				Action: e.mcpStdio,
			},
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(c.String("env"))
}

// open loads the configuration and wires the application.
func (e *env) open(c *cli.Context) (*app.App, *zap.Logger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logpkg.NewLogger(c.String("env"), c.String("log-level"))
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	a, err := app.Build(c.Context, cfg, logger, e.appOpts...)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func (e *env) ctx(c *cli.Context) context.Context {
	return authz.WithPrincipal(c.Context, authz.System())
}

func (e *env) readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(e.in)
	}
	return os.ReadFile(filepath.Clean(name))
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) ingest(c *cli.Context) error {
	raw, err := e.readInput(c.String("file"))
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	data, err := payload.ParseIngestData(raw)
	if err != nil {
		return err
	}

	a, _, err := e.open(c)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := e.ctx(c)
	rep, err := a.Ingest.Ingest(ctx, authz.FromContext(ctx), data.Request(c.String("city"), domdoc.Type(c.String("type"))))
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	fmt.Fprintf(e.out, "%s %d items into %s (%d embeddings)\n",
		e.ok("Inserted"), rep.Inserted, e.bold(c.String("city")), rep.Embedded)
	return nil
}

func (e *env) search(c *cli.Context) error {
	a, _, err := e.open(c)
	if err != nil {
		return err
	}
	defer a.Close()

	q, err := query.New(c.String("query"), c.String("city"), c.String("type"), c.Int("limit"), a.Limits)
	if err != nil {
		return err
	}
	if c.Bool("vector") {
		out, err := a.Search.Vector(c.Context, q)
		if err != nil {
			return err
		}
		if out.FellBack {
			fmt.Fprintln(e.out, e.warn("Query could not be embedded, showing keyword results"))
		}
		return e.printJSON(payload.NewVectorSearch(q, out))
	}
	out, err := a.Search.Keyword(c.Context, q)
	if err != nil {
		return err
	}
	return e.printJSON(payload.NewSearch(q, out))
}

func (e *env) stats(c *cli.Context) error {
	a, _, err := e.open(c)
	if err != nil {
		return err
	}
	defer a.Close()

	city := c.String("city")
	if strings.EqualFold(city, query.All) {
		city = ""
	}
	st, err := a.Stats.Compute(c.Context, city)
	if err != nil {
		return err
	}
	return e.printJSON(payload.NewStats(st))
}

func (e *env) clearCity(c *cli.Context) error {
	city := c.String("city")
	if !c.Bool("yes") {
		return fmt.Errorf("refusing to delete the documents of %s without --yes", city)
	}
	a, _, err := e.open(c)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := e.ctx(c)
	res, err := a.Purge.ClearCity(ctx, authz.FromContext(ctx), city)
	if err != nil {
		return fmt.Errorf("clear city: %w", err)
	}
	fmt.Fprintf(e.out, "%s %d documents of %s\n", e.ok("Deleted"), res.Deleted, e.bold(city))
	return nil
}

func (e *env) clearAll(c *cli.Context) error {
	if !c.Bool("yes") {
		return fmt.Errorf("refusing to delete the whole collection without --yes")
	}
	a, _, err := e.open(c)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := e.ctx(c)
	res, err := a.Purge.ClearAll(ctx, authz.FromContext(ctx))
	if err != nil {
		return fmt.Errorf("clear all: %w", err)
	}
	if !res.Performed {
		fmt.Fprintln(e.out, e.warn("Global purge is disabled (admin.allow_purge_all); nothing deleted"))
		return nil
	}
	fmt.Fprintf(e.out, "%s %d documents across %d cities\n", e.ok("Deleted"), res.Deleted, len(res.CitiesAffected))
	return nil
}

// cityFile is the YAML form of a city configuration.
type cityFile struct {
	Slug            string              `yaml:"slug"`
	Name            string              `yaml:"name"`
	DisplayName     string              `yaml:"display_name"`
	Province        string              `yaml:"province"`
	Population      int                 `yaml:"population"`
	IsActive        *bool               `yaml:"is_active"`
	ScrapingEnabled bool                `yaml:"scraping_enabled"`
	AdminIDs        []string            `yaml:"admin_ids"`
	URLs            map[string][]string `yaml:"urls"`
}

func (f cityFile) city() domcity.City {
	c := domcity.City{
		Slug:            f.Slug,
		Name:            f.Name,
		DisplayName:     f.DisplayName,
		Province:        f.Province,
		Population:      f.Population,
		IsActive:        f.IsActive == nil || *f.IsActive,
		ScrapingEnabled: f.ScrapingEnabled,
		AdminIDs:        f.AdminIDs,
		URLs:            make(map[domcity.URLCategory][]string, len(f.URLs)),
	}
	for cat, urls := range f.URLs {
		c.URLs[domcity.URLCategory(cat)] = urls
	}
	return c
}

func (e *env) cityPut(c *cli.Context) error {
	raw, err := e.readInput(c.String("file"))
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var f cityFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse city yaml: %w", err)
	}

	a, _, err := e.open(c)
	if err != nil {
		return err
	}
	defer a.Close()

	city := f.city()
	if err := a.Cities.Put(c.Context, city); err != nil {
		return err
	}
	_, total := city.URLCounts()
	fmt.Fprintf(e.out, "%s %s (%d urls)\n", e.ok("Saved"), e.bold(city.Slug), total)
	return nil
}

func (e *env) cityList(c *cli.Context) error {
	a, _, err := e.open(c)
	if err != nil {
		return err
	}
	defer a.Close()

	cities, err := a.City.List(c.Context)
	if err != nil {
		return err
	}
	for _, city := range cities {
		counts, total := city.URLCounts()
		urls := payload.NewCityURLs(cityuc.URLs{City: city, Counts: counts, TotalURLs: total})
		fmt.Fprintf(e.out, "%s\t%s\t%d urls\n", e.bold(urls.CitySlug), urls.CityName, urls.TotalURLs)
	}
	return nil
}

func (e *env) token(c *cli.Context) error {
	secret := c.String("secret")
	if secret == "" {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		secret = cfg.Auth.JWTSecret
	}
	tok, err := chiTransport.IssueToken(secret, c.String("subject"), authz.ParseRole(c.String("role")),
		c.StringSlice("cities"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, tok)
	return nil
}

func (e *env) mcpStdio(c *cli.Context) error {
	a, logger, err := e.open(c)
	if err != nil {
		return err
	}
	defer a.Close()

	s := mcp.NewServer(mcp.NewTools(a.MCPServices(), a.Limits, logger), version.Version)
	return mcp.ServeStdio(s, authz.System())
}
