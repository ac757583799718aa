// Package mcp exposes the retrieval and administration operations as MCP tools for agent orchestrators.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/authz"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	logpkg "github.com/kailas-cloud/cityrag/internal/logger"
	"github.com/kailas-cloud/cityrag/internal/transport/payload"
	cityuc "github.com/kailas-cloud/cityrag/internal/usecase/city"
	embeddinguc "github.com/kailas-cloud/cityrag/internal/usecase/embedding"
	ingestuc "github.com/kailas-cloud/cityrag/internal/usecase/ingest"
	purgeuc "github.com/kailas-cloud/cityrag/internal/usecase/purge"
	scrapeuc "github.com/kailas-cloud/cityrag/internal/usecase/scrape"
	searchuc "github.com/kailas-cloud/cityrag/internal/usecase/search"
	statsuc "github.com/kailas-cloud/cityrag/internal/usecase/stats"
)

// Tool names.
const (
	ToolSearch        = "search_documents"
	ToolVectorSearch  = "vector_search_documents"
	ToolListDocuments = "list_documents"
	ToolIngest        = "ingest_documents"
	ToolStats         = "get_stats"
	ToolCityURLs      = "get_city_urls"
	ToolClearCity     = "clear_city_documents"
	ToolClearAll      = "clear_all_documents"
	ToolScrape        = "scrape_events"
	ToolScrapeIngest  = "scrape_and_ingest"
	ToolEmbed         = "generate_embedding"
)

// Services are the use cases the tools dispatch to. Scrape and Embedder may be nil.
type Services struct {
	Search   *searchuc.Service
	Ingest   *ingestuc.Service
	Stats    *statsuc.Service
	Purge    *purgeuc.Service
	Cities   *cityuc.Service
	Scrape   *scrapeuc.Service
	Embedder domain.Embedder
}

// Tools binds the services to MCP tool handlers.
type Tools struct {
	svc    Services
	limits query.Limits
	logger *zap.Logger
}

// NewTools creates the tool set.
func NewTools(svc Services, limits query.Limits, logger *zap.Logger) *Tools {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tools{svc: svc, limits: limits, logger: logger}
}

// NewServer creates an MCP server with every tool registered.
func NewServer(t *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer("cityrag", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	t.Register(s)
	return s
}

// Register adds the tools to s.
func (t *Tools) Register(s *server.MCPServer) {
	searchArgs := []mcpgo.ToolOption{
		mcpgo.WithString("query", mcpgo.Required(), mcpgo.Description("Free-text query.")),
		mcpgo.WithString("city_slug", mcpgo.Description("City slug, or \"all\".")),
		mcpgo.WithString("data_type", mcpgo.Description("Document type (event, procedure, news, tourism), or \"all\".")),
		mcpgo.WithNumber("limit", mcpgo.Description("Maximum number of results.")),
	}

	s.AddTool(mcpgo.NewTool(ToolSearch, append([]mcpgo.ToolOption{
		mcpgo.WithDescription("Keyword search over active city documents, ranked by relevance."),
	}, searchArgs...)...), t.Search)

	s.AddTool(mcpgo.NewTool(ToolVectorSearch, append([]mcpgo.ToolOption{
		mcpgo.WithDescription("Semantic search over active city documents by embedding similarity. Falls back to keyword search when the query cannot be embedded."),
	}, searchArgs...)...), t.VectorSearch)

	s.AddTool(mcpgo.NewTool(ToolListDocuments,
		mcpgo.WithDescription("List stored documents by city, type and administrator."),
		mcpgo.WithString("city_slug", mcpgo.Description("City slug, or \"all\".")),
		mcpgo.WithString("data_type", mcpgo.Description("Document type, or \"all\".")),
		mcpgo.WithString("admin_id", mcpgo.Description("Only documents administered by this id.")),
		mcpgo.WithNumber("limit", mcpgo.Description("Maximum number of documents.")),
	), t.ListDocuments)

	s.AddTool(mcpgo.NewTool(ToolIngest,
		mcpgo.WithDescription("Store items as searchable documents with embeddings. Requires write access to the city."),
		mcpgo.WithString("data_json", mcpgo.Required(), mcpgo.Description("JSON object with an \"events\" or \"items\" list.")),
		mcpgo.WithString("city_slug", mcpgo.Required(), mcpgo.Description("Target city slug.")),
		mcpgo.WithString("data_type", mcpgo.Description("Document type, default event.")),
	), t.Ingest)

	s.AddTool(mcpgo.NewTool(ToolStats,
		mcpgo.WithDescription("Aggregate counts and confidence over the document collection."),
		mcpgo.WithString("city_slug", mcpgo.Description("Restrict to one city.")),
	), t.Stats)

	s.AddTool(mcpgo.NewTool(ToolCityURLs,
		mcpgo.WithDescription("Official URLs configured for a city, grouped by category."),
		mcpgo.WithString("city_slug", mcpgo.Required(), mcpgo.Description("City slug.")),
	), t.CityURLs)

	s.AddTool(mcpgo.NewTool(ToolClearCity,
		mcpgo.WithDescription("Delete every document of a city. Requires write access to the city."),
		mcpgo.WithString("city_slug", mcpgo.Required(), mcpgo.Description("City slug.")),
	), t.ClearCity)

	s.AddTool(mcpgo.NewTool(ToolClearAll,
		mcpgo.WithDescription("Delete the whole document collection. Superadmin only; a no-op unless enabled in configuration."),
	), t.ClearAll)

	s.AddTool(mcpgo.NewTool(ToolScrape,
		mcpgo.WithDescription("Extract events from an agenda page with the headless browser. Stores nothing."),
		mcpgo.WithString("url", mcpgo.Required(), mcpgo.Description("Page URL.")),
		mcpgo.WithString("city_slug", mcpgo.Required(), mcpgo.Description("City slug.")),
	), t.Scrape)

	s.AddTool(mcpgo.NewTool(ToolScrapeIngest,
		mcpgo.WithDescription("Scrape an agenda page, or every agenda URL of the city when url is omitted, and store the events."),
		mcpgo.WithString("city_slug", mcpgo.Required(), mcpgo.Description("City slug.")),
		mcpgo.WithString("url", mcpgo.Description("Page URL.")),
	), t.ScrapeAndIngest)

	s.AddTool(mcpgo.NewTool(ToolEmbed,
		mcpgo.WithDescription("Generate an embedding for text and report its dimensions."),
		mcpgo.WithString("text", mcpgo.Required(), mcpgo.Description("Text to embed.")),
	), t.GenerateEmbedding)
}

func (t *Tools) bindQuery(req mcpgo.CallToolRequest) (query.Query, error) {
	text, err := req.RequireString("query")
	if err != nil {
		return query.Query{}, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}
	q, err := query.New(text, req.GetString("city_slug", query.All), req.GetString("data_type", query.All), req.GetInt("limit", 0), t.limits)
	if err != nil {
		return query.Query{}, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}
	return q, nil
}

// Search runs a keyword search.
func (t *Tools) Search(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	q, err := t.bindQuery(req)
	if err != nil {
		return t.fail(ctx, ToolSearch, err, payload.SearchDefaults, nil)
	}
	out, err := t.svc.Search.Keyword(ctx, q)
	if err != nil {
		return t.fail(ctx, ToolSearch, err, payload.SearchDefaults, nil)
	}
	return ok(payload.NewSearch(q, out))
}

// VectorSearch runs a vector search.
func (t *Tools) VectorSearch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	q, err := t.bindQuery(req)
	if err != nil {
		return t.fail(ctx, ToolVectorSearch, err, payload.SearchDefaults, nil)
	}
	out, err := t.svc.Search.Vector(ctx, q)
	if err != nil {
		return t.fail(ctx, ToolVectorSearch, err, payload.SearchDefaults, nil)
	}
	return ok(payload.NewVectorSearch(q, out))
}

// ListDocuments lists stored documents.
func (t *Tools) ListDocuments(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	limit := req.GetInt("limit", 0)
	if limit <= 0 {
		limit = t.limits.Default
	}
	if t.limits.Max > 0 && limit > t.limits.Max {
		err := fmt.Errorf("limit %d exceeds maximum %d: %w", limit, t.limits.Max, domain.ErrInvalidInput)
		return t.fail(ctx, ToolListDocuments, err, payload.ListingDefaults, nil)
	}
	docs, err := t.svc.Search.List(ctx, searchuc.Listing{
		CitySlug: req.GetString("city_slug", ""),
		Type:     req.GetString("data_type", ""),
		AdminID:  req.GetString("admin_id", ""),
		Limit:    limit,
	})
	if err != nil {
		return t.fail(ctx, ToolListDocuments, err, payload.ListingDefaults, nil)
	}
	items := payload.NewDocuments(docs)
	return ok(payload.Documents{Items: items, Total: len(items), Success: true})
}

// Ingest stores the items of data_json.
func (t *Tools) Ingest(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	city := req.GetString("city_slug", "")
	ctx = logpkg.WithCity(ctx, city)

	raw, err := req.RequireString("data_json")
	if err != nil {
		return t.fail(ctx, ToolIngest, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput), payload.IngestDefaults, nil)
	}
	data, err := payload.ParseIngestData([]byte(raw))
	if err != nil {
		return t.fail(ctx, ToolIngest, err, payload.IngestDefaults, nil)
	}
	dataType := domdoc.Type(req.GetString("data_type", string(domdoc.TypeEvent)))

	rep, err := t.svc.Ingest.Ingest(ctx, authz.FromContext(ctx), data.Request(city, dataType))
	if err != nil {
		var partial any
		if rep.Inserted > 0 {
			partial = payload.NewIngest(rep)
		}
		return t.fail(ctx, ToolIngest, err, payload.IngestDefaults, partial)
	}
	return ok(payload.NewIngest(rep))
}

// Stats computes collection statistics.
func (t *Tools) Stats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	city := req.GetString("city_slug", "")
	if strings.EqualFold(city, query.All) {
		city = ""
	}
	st, err := t.svc.Stats.Compute(ctx, city)
	if err != nil {
		return t.fail(ctx, ToolStats, err, payload.StatsDefaults, nil)
	}
	return ok(payload.NewStats(st))
}

// CityURLs returns the configured URLs of a city.
func (t *Tools) CityURLs(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	city, err := req.RequireString("city_slug")
	if err != nil {
		return t.fail(ctx, ToolCityURLs, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput), payload.CityURLDefaults, nil)
	}
	urls, err := t.svc.Cities.GetURLs(ctx, city)
	if err != nil {
		return t.fail(ctx, ToolCityURLs, err, payload.CityURLDefaults, nil)
	}
	return ok(payload.NewCityURLs(urls))
}

// ClearCity deletes the documents of a city.
func (t *Tools) ClearCity(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	city, err := req.RequireString("city_slug")
	if err != nil {
		return t.fail(ctx, ToolClearCity, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput), payload.ClearDefaults, nil)
	}
	ctx = logpkg.WithCity(ctx, city)
	res, err := t.svc.Purge.ClearCity(ctx, authz.FromContext(ctx), city)
	if err != nil {
		var partial any
		if res.Deleted > 0 {
			partial = payload.NewClearCity(res)
		}
		return t.fail(ctx, ToolClearCity, err, payload.ClearDefaults, partial)
	}
	return ok(payload.NewClearCity(res))
}

// ClearAll deletes the whole collection when enabled.
func (t *Tools) ClearAll(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	res, err := t.svc.Purge.ClearAll(ctx, authz.FromContext(ctx))
	if err != nil {
		return t.fail(ctx, ToolClearAll, err, payload.ClearAllDefaults, nil)
	}
	return ok(payload.NewClearAll(res))
}

// Scrape extracts the events of a page.
func (t *Tools) Scrape(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if t.svc.Scrape == nil {
		return t.fail(ctx, ToolScrape, fmt.Errorf("scrape service: %w", domain.ErrNotImplemented), payload.ScrapeDefaults, nil)
	}
	pageURL, err := req.RequireString("url")
	if err != nil {
		return t.fail(ctx, ToolScrape, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput), payload.ScrapeDefaults, nil)
	}
	res, err := t.svc.Scrape.Scrape(ctx, pageURL, req.GetString("city_slug", ""))
	if err != nil {
		return t.fail(ctx, ToolScrape, err, payload.ScrapeDefaults, nil)
	}
	return ok(payload.NewScrape(res))
}

// ScrapeAndIngest scrapes one page, or every agenda URL of the city, into the collection.
func (t *Tools) ScrapeAndIngest(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if t.svc.Scrape == nil {
		return t.fail(ctx, ToolScrapeIngest, fmt.Errorf("scrape service: %w", domain.ErrNotImplemented), payload.IngestDefaults, nil)
	}
	city, err := req.RequireString("city_slug")
	if err != nil {
		return t.fail(ctx, ToolScrapeIngest, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput), payload.IngestDefaults, nil)
	}
	ctx = logpkg.WithCity(ctx, city)
	p := authz.FromContext(ctx)

	pageURL := req.GetString("url", "")
	if pageURL == "" {
		out, err := t.svc.Scrape.ScrapeCity(ctx, p, city)
		if err != nil {
			return t.fail(ctx, ToolScrapeIngest, err, payload.IngestDefaults, nil)
		}
		return ok(payload.NewScrapeCity(out))
	}
	out, err := t.svc.Scrape.ScrapeAndIngest(ctx, p, pageURL, city)
	if err != nil {
		return t.fail(ctx, ToolScrapeIngest, err, payload.IngestDefaults, payload.NewScrapeIngest(out))
	}
	return ok(payload.NewScrapeIngest(out))
}

// GenerateEmbedding embeds text and reports the vector dimensions.
func (t *Tools) GenerateEmbedding(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	res, err := embeddinguc.Probe(ctx, t.svc.Embedder, req.GetString("text", ""))
	if err != nil {
		return t.fail(ctx, ToolEmbed, err, payload.EmbedDefaults, nil)
	}
	return ok(payload.NewEmbedding(res))
}

// NewHTTPHandler serves the MCP server over streamable HTTP at path.
// The principal resolved by the HTTP auth middleware is carried into tool calls.
func NewHTTPHandler(s *server.MCPServer, path string) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithEndpointPath(path),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			ctx = authz.WithPrincipal(ctx, authz.FromContext(r.Context()))
			return logpkg.ContextWithLogger(ctx, logpkg.FromContext(r.Context()))
		}),
	)
}

// ServeStdio serves the MCP server on stdin/stdout with p as the principal of every call.
func ServeStdio(s *server.MCPServer, p authz.Principal) error {
	return server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return authz.WithPrincipal(ctx, p)
	}))
}

func ok(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// fail reports err as a tool-error result carrying the JSON error payload. Recoverable errors never escape.
func (t *Tools) fail(ctx context.Context, tool string, err error, defaults payload.Defaults, partial any) (*mcpgo.CallToolResult, error) {
	t.logger.Warn("tool failed",
		zap.String("tool", tool),
		zap.String("principal", authz.FromContext(ctx).Subject),
		zap.Error(err),
	)

	b, mErr := json.Marshal(payload.Error(err, defaults, partial))
	if mErr != nil {
		return nil, fmt.Errorf("marshal error payload: %w", mErr)
	}
	return mcpgo.NewToolResultError(string(b)), nil
}
