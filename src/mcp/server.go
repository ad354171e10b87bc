package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"diaglog/src/contracts"
	"diaglog/src/diagerr"
	"diaglog/src/digest"
	"diaglog/src/hexnrc"
	"diaglog/src/ingest"
	"diaglog/src/logger"
	"diaglog/src/pipeline"
	"diaglog/src/store"
)

// Server is the MCP server for diaglog.
type Server struct {
	mcpServer *server.MCPServer
	engine    *pipeline.Engine
	decoder   *hexnrc.Decoder
	store     ReportStore
	budget    digest.Budget
	log       logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStore sets the report store used for drill-down.
func WithStore(st ReportStore) Option {
	return func(s *Server) { s.store = st }
}

// WithBudget sets the default digest budget.
func WithBudget(b digest.Budget) Option {
	return func(s *Server) { s.budget = b }
}

// WithLogger sets the server logger. MCP speaks on stdout, so the logger
// must write elsewhere.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// NewServer creates a new MCP server backed by engine.
func NewServer(engine *pipeline.Engine, opts ...Option) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"diaglog",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		engine:  engine,
		decoder: hexnrc.NewDecoder(engine.References()),
		store:   store.NewMemoryStore(),
		budget:  digest.Budget{MaxChars: digest.DefaultMaxChars},
		log:     logger.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	analyzeTool := mcp.NewTool("analyze_log",
		mcp.WithDescription("Analyze an automotive diagnostic session log (text or XML) and return a tiered manifest: session metadata, the synthesized root cause, tier 1 evidence buckets fully expanded, tier 2-3 buckets summarized, and a compact digest. Use get_bucket_details to drill into any bucket."),
		mcp.WithString("path",
			mcp.Description("Path of a log file readable by the server"),
		),
		mcp.WithString("content",
			mcp.Description("Raw log content, used when path is not given"),
		),
		mcp.WithString("format",
			mcp.Description("Input format: auto, text or xml (default: auto)"),
			mcp.Enum("auto", "text", "xml"),
		),
		mcp.WithNumber("max_chars",
			mcp.Description("Digest character budget (default: 4000)"),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Digest token budget, estimated at 4 characters per token"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max tier 1 findings (default: 15)"),
		),
		mcp.WithBoolean("best_effort",
			mcp.Description("Return a partial report instead of failing when the input breaks mid-stream"),
		),
	)

	detailsTool := mcp.NewTool("get_bucket_details",
		mcp.WithDescription("Get full details for one error bucket, including every stored sample line. Use after analyze_log."),
		mcp.WithString("request_id",
			mcp.Required(),
			mcp.Description("Request ID from the analyze_log response"),
		),
		mcp.WithString("bucket_id",
			mcp.Required(),
			mcp.Description("Bucket ID from the manifest"),
		),
	)

	decodeTool := mcp.NewTool("decode_hex",
		mcp.WithDescription("Decode a hex payload byte by byte and guess its CAN/ISO-TP/UDS fields. The field split is a best-effort heuristic."),
		mcp.WithString("hex",
			mcp.Required(),
			mcp.Description("Hex bytes, e.g. \"7E8 03 7F 31 78\" or \"0x62F190\""),
		),
	)

	nrcTool := mcp.NewTool("explain_nrc",
		mcp.WithDescription("Explain a UDS negative response code."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("NRC byte such as \"78\" or \"0x31\", or a full \"7F <SID> <NRC>\" response"),
		),
	)

	s.mcpServer.AddTool(analyzeTool, s.handleAnalyzeLog)
	s.mcpServer.AddTool(detailsTool, s.handleGetBucketDetails)
	s.mcpServer.AddTool(decodeTool, s.handleDecodeHex)
	s.mcpServer.AddTool(nrcTool, s.handleExplainNRC)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// handleAnalyzeLog handles the analyze_log tool call.
// Returns a manifest; use get_bucket_details for full samples.
func (s *Server) handleAnalyzeLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	content := request.GetString("content", "")
	if path == "" && content == "" {
		return mcp.NewToolResultError("path or content parameter is required"), nil
	}

	format, err := ingest.ParseFormat(request.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pipeline.Request{
		RequestID:  ingest.NewRequestID(),
		Format:     format,
		BestEffort: request.GetBool("best_effort", false),
	}

	var report *contracts.Report
	if path != "" {
		req.Source = filepath.Base(path)
		report, err = s.engine.AnalyzeFile(ctx, path, req)
	} else {
		req.Source = "content"
		report, err = s.engine.AnalyzeString(ctx, content, req)
	}
	if report == nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", diagerr.WrapError(err))), nil
	}
	if err != nil {
		s.log.Info("[MCP] Partial report for %s: %v", req.RequestID, err)
	}

	if err := s.store.SaveReport(ctx, report); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store report: %v", err)), nil
	}

	budget := s.budget
	if n := request.GetInt("max_chars", 0); n > 0 {
		budget.MaxChars = n
	}
	if n := request.GetInt("max_tokens", 0); n > 0 {
		budget.MaxTokens = n
	}

	manifest := BuildManifest(report, request.GetInt("limit", DefaultTier1Limit), budget)
	return jsonResult(manifest)
}

// handleGetBucketDetails handles the get_bucket_details tool call.
func (s *Server) handleGetBucketDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := request.GetString("request_id", "")
	if requestID == "" {
		return mcp.NewToolResultError("request_id parameter is required"), nil
	}
	bucketID := request.GetString("bucket_id", "")
	if bucketID == "" {
		return mcp.NewToolResultError("bucket_id parameter is required"), nil
	}

	report, err := s.store.GetReport(ctx, requestID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("report not found: request_id=%s", requestID)), nil
	}
	bucket, err := s.store.GetBucket(ctx, requestID, bucketID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("bucket not found: request_id=%s, bucket_id=%s", requestID, bucketID)), nil
	}

	return jsonResult(BucketDetails(report, *bucket))
}

// DecodeResult is the decode_hex response.
type DecodeResult struct {
	Bytes []hexnrc.DecodedByte `json:"bytes,omitempty"`
	Frame *hexnrc.FrameGuess   `json:"frame,omitempty"`
}

// Decode returns whatever part of input could be decoded. It fails only when
// neither the bytes nor a frame could be read.
func Decode(d *hexnrc.Decoder, input string) (DecodeResult, error) {
	var result DecodeResult
	bytes, bytesErr := hexnrc.DecodeHexBytes(input)
	if bytesErr == nil {
		result.Bytes = bytes
	}
	frame, frameErr := d.Decompose(input)
	if frameErr == nil {
		result.Frame = &frame
	}
	if bytesErr != nil && frameErr != nil {
		return result, bytesErr
	}
	return result, nil
}

// handleDecodeHex handles the decode_hex tool call.
func (s *Server) handleDecodeHex(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input := request.GetString("hex", "")
	if input == "" {
		return mcp.NewToolResultError("hex parameter is required"), nil
	}

	result, err := Decode(s.decoder, input)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

// handleExplainNRC handles the explain_nrc tool call.
func (s *Server) handleExplainNRC(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := hexnrc.ParseCode(request.GetString("code", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.decoder.ExplainNRC(code))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
