// Package mcp exposes causerie's generators and statistics as MCP tools
// over stdio, so an assistant can fetch lessons and drills on demand.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/causerie-app/causerie/pkg/models"
)

// Generator is the subset of the content generator the tools call.
type Generator interface {
	GrammarExplanation(ctx context.Context, topic, language string) (models.GrammarExplanation, error)
	Conjugation(ctx context.Context, verb, language string) (models.VerbConjugation, error)
	Quiz(ctx context.Context, topic, level, language string) (models.Quiz, error)
	Flashcards(ctx context.Context, theme, language string) ([]models.Flashcard, error)
	Phrases(ctx context.Context, situation, language string) ([]models.Phrase, error)
	WritingFeedback(ctx context.Context, task, essay, language string) (models.WritingFeedback, error)
}

// CacheStatter provides cache statistics without coupling to a concrete cache implementation.
type CacheStatter interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// AttemptSummarizer aggregates provider attempts.
type AttemptSummarizer interface {
	Summary(ctx context.Context, since time.Time) ([]models.AttemptSummary, error)
}

// Options wires a Server. Cache and Attempts may be nil.
type Options struct {
	Generator Generator
	Cache     CacheStatter
	Attempts  AttemptSummarizer
	Language  string
	Level     string
	Version   string
	Logger    zerolog.Logger
}

// Server is a minimal MCP server that communicates over stdio using JSON-RPC 2.0.
type Server struct {
	gen      Generator
	cache    CacheStatter
	attempts AttemptSummarizer
	language string
	level    string
	version  string
	log      zerolog.Logger
}

// New creates a new MCP Server.
func New(opts Options) *Server {
	return &Server{
		gen:      opts.Generator,
		cache:    opts.Cache,
		attempts: opts.Attempts,
		language: opts.Language,
		level:    opts.Level,
		version:  opts.Version,
		log:      opts.Logger.With().Str("component", "mcp").Logger(),
	}
}

// Run reads JSON-RPC requests from r line-by-line and writes responses to w.
// It blocks until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, Response{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: CodeParseError, Message: "parse error"},
			})
			continue
		}

		resp := s.dispatch(ctx, &req)
		if resp == nil {
			continue
		}
		s.writeResponse(w, *resp)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.reply(req, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: "causerie", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return s.reply(req, map[string]any{})
	case "tools/list":
		return s.reply(req, ToolsListResult{Tools: allTools})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
}

func (s *Server) reply(req *Request, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: CodeInvalidParams, Message: "invalid params"},
		}
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return s.reply(req, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}

	var args toolArgs
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return s.reply(req, errorResult("invalid arguments: "+err.Error()))
		}
	}

	start := time.Now()
	result := handler(ctx, s, args)
	s.log.Debug().Str("tool", params.Name).Bool("error", result.IsError).Dur("duration", time.Since(start)).Msg("tool call")
	return s.reply(req, result)
}

func (s *Server) writeResponse(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal response")
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.log.Error().Err(err).Msg("write response")
	}
}
