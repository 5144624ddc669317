package mcp

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/services"
	"github.com/custodia-labs/docrag/internal/logger"
)

// defaultLimit is used when a tool call omits the limit.
const defaultLimit = 5

// Principal identifies the caller of a tool. Omitting the access level
// reads as an anonymous public user.
type Principal struct {
	UserID      string `json:"user_id,omitempty" jsonschema:"identifier recorded in search history"`
	AccessLevel int    `json:"access_level,omitempty" jsonschema:"1 public, 2 internal, 3 confidential"`
	Department  string `json:"department,omitempty" jsonschema:"department of the caller, required above public"`
}

func (p Principal) user() (*domain.UserContext, error) {
	return domain.NewUserContext(p.UserID, domain.AccessLevel(p.AccessLevel), p.Department)
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Query string `json:"query" jsonschema:"the question to answer (5-200 characters)"`
	Limit int    `json:"limit,omitempty" jsonschema:"number of passages to ground the answer on (1-20, default 5)"`
	Principal
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	QueryID        string         `json:"query_id"`
	Answer         string         `json:"answer"`
	IsFallback     bool           `json:"is_fallback"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	Model          string         `json:"model"`
	Sources        []SourceOutput `json:"sources"`
	TotalMS        int64          `json:"total_ms"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query (5-200 characters)"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of passages to return (1-20, default 5)"`
	Principal
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SourceOutput `json:"results"`
	Count   int            `json:"count"`
}

// SourceOutput is one retrieved passage.
type SourceOutput struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Page       int     `json:"page,omitempty"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// IndexInput is the input schema for the index tool.
type IndexInput struct {
	Path        string `json:"path" jsonschema:"absolute path of a pdf, docx, txt or md file"`
	AccessLevel int    `json:"access_level,omitempty" jsonschema:"1 public (default), 2 internal, 3 confidential"`
	Department  string `json:"department,omitempty" jsonschema:"owning department, required above public"`
	Title       string `json:"title,omitempty" jsonschema:"title override"`
}

// FeedbackInput is the input schema for the feedback tool.
type FeedbackInput struct {
	QueryID string `json:"query_id" jsonschema:"query_id returned by ask"`
	Rating  int    `json:"rating" jsonschema:"1 (poor) to 5 (excellent)"`
	Comment string `json:"comment,omitempty" jsonschema:"optional comment, at most 500 characters"`
	UserID  string `json:"user_id,omitempty"`
}

// FeedbackOutput is the output schema for the feedback tool.
type FeedbackOutput struct {
	FeedbackID string `json:"feedback_id"`
}

// registerTools registers the tools whose ports are available.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the documents the caller may read, citing sources",
	}, s.handleAsk)

	if s.ports.Retrieval != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "search",
			Description: "Retrieve the most relevant passages the caller may read, without generating an answer",
		}, s.handleSearch)
	}
	if s.ports.Indexing != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "index",
			Description: "Parse, chunk, embed and index one local file",
		}, s.handleIndex)
	}
	if s.ports.History != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "feedback",
			Description: "Rate a previous answer",
		}, s.handleFeedback)
	}
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	user, err := input.user()
	if err != nil {
		return nil, AskOutput{}, err
	}

	ans, err := s.ports.Answer.SearchAndAnswer(ctx, input.Query, limitOrDefault(input.Limit), user)
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		QueryID:        ans.QueryID,
		Answer:         ans.Answer,
		IsFallback:     ans.Metadata.IsFallback,
		FallbackReason: string(ans.Metadata.FallbackReason),
		Model:          ans.Metadata.ModelUsed,
		Sources:        sourcesOutput(ans.Sources),
		TotalMS:        ans.Performance.TotalMS,
	}, nil
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	user, err := input.user()
	if err != nil {
		return nil, SearchOutput{}, err
	}

	results, err := s.ports.Retrieval.Retrieve(ctx, input.Query, limitOrDefault(input.Limit), user)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, SearchOutput{}, err
		}
		return nil, SearchOutput{}, services.SafeError(err)
	}

	out := sourcesOutput(results)
	return nil, SearchOutput{Results: out, Count: len(out)}, nil
}

func (s *Server) handleIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexInput,
) (*mcp.CallToolResult, domain.IndexingResult, error) {
	if input.Path == "" {
		return nil, domain.IndexingResult{}, errors.New("path is required")
	}
	if !s.underRoots(input.Path) {
		logger.Event("warn", "mcp.index_denied", "path", logger.Mask(input.Path))
		return nil, domain.IndexingResult{}, errOutsideRoots
	}
	res := s.ports.Indexing.IndexDocument(ctx, input.Path, domain.IndexOptions{
		AccessLevel: domain.AccessLevel(input.AccessLevel),
		Department:  input.Department,
		Title:       input.Title,
	})
	return nil, res, nil
}

func (s *Server) handleFeedback(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FeedbackInput,
) (*mcp.CallToolResult, FeedbackOutput, error) {
	id, err := s.ports.History.SubmitFeedback(ctx, domain.Feedback{
		QueryID: input.QueryID,
		UserID:  input.UserID,
		Rating:  input.Rating,
		Comment: input.Comment,
	})
	if err != nil {
		return nil, FeedbackOutput{}, err
	}
	return nil, FeedbackOutput{FeedbackID: id}, nil
}

var errOutsideRoots = errors.New("path is outside the directories this server may index")

// resolveRoots makes each root absolute with symlinks evaluated.
func resolveRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		out = append(out, realPath(r))
	}
	return out
}

// realPath resolves symlinks where the path exists and cleans it otherwise.
func realPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// underRoots reports whether path lies inside one of the configured roots.
// No roots allows everything.
func (s *Server) underRoots(path string) bool {
	if len(s.roots) == 0 {
		return true
	}
	target := realPath(path)
	for _, root := range s.roots {
		rel, err := filepath.Rel(root, target)
		if err != nil || filepath.IsAbs(rel) {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func limitOrDefault(limit int) int {
	if limit == 0 {
		return defaultLimit
	}
	return limit
}

func sourcesOutput(results []domain.SearchResult) []SourceOutput {
	out := make([]SourceOutput, len(results))
	for i, r := range results {
		out[i] = SourceOutput{
			DocumentID: r.DocumentID,
			Title:      r.Title,
			Source:     r.Source,
			ChunkIndex: r.ChunkIndex,
			Score:      r.RelevanceScore,
			Content:    r.Content,
		}
		if r.PageNumber != nil {
			out[i].Page = *r.PageNumber
		}
	}
	return out
}
